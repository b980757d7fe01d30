package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linkenthegreat/docex/internal/domain"
	"github.com/linkenthegreat/docex/internal/selector"
)

type extractRequest struct {
	Input    string         `json:"input"`
	Priority string         `json:"priority"`
	Options  map[string]any `json:"options"`
}

// StartExtraction submits a new extraction job. The response is returned as
// soon as the pending record is persisted; the worker runs in the background.
func (a *App) StartExtraction(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "input is required")
		return
	}
	priority, ok := domain.ParsePriority(req.Priority)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "priority must be one of cost, quality, speed, privacy")
		return
	}

	job, err := a.Executor.Submit(r.Context(), req.Input, priority, req.Options)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid submission")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: submit failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to submit job")
		return
	}

	plannedModel, _ := selector.PlannedModel(priority)
	a.json(w, http.StatusAccepted, map[string]any{
		"job_id":             job.ID,
		"status":             "started",
		"estimated_duration": selector.EstimatedDuration(priority).Seconds(),
		"model":              plannedModel,
	})
}

// ExtractionStatus reports progress for one job, rehydrating from the store
// when the job is no longer resident in memory.
func (a *App) ExtractionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("handlers: status lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	resp := map[string]any{
		"job_id":        job.ID,
		"status":        job.Status,
		"progress":      job.Progress,
		"current_step":  job.CurrentStep,
		"substep":       job.SubStep,
		"elapsed_time":  job.Elapsed(time.Now()).Seconds(),
		"model_used":    job.ModelUsed,
		"strategy_used": job.StrategyUsed,
		"cost_estimate": job.CostEstimate,
	}
	if job.Status == domain.JobStatusComplete && job.Results != nil {
		resp["results"] = json.RawMessage(job.Results)
	}
	if job.Status == domain.JobStatusError && job.Error != nil {
		resp["error"] = job.Error
	}
	a.json(w, http.StatusOK, resp)
}

// ExtractionResults returns the full result payload of a completed job.
func (a *App) ExtractionResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("handlers: results lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if job.Status != domain.JobStatusComplete {
		a.error(w, http.StatusConflict, "not_ready", domain.ErrNotReady.Error())
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"job_id":  job.ID,
		"input":   job.Input,
		"results": json.RawMessage(job.Results),
		"metadata": map[string]any{
			"priority":        job.Priority,
			"strategy_used":   job.StrategyUsed,
			"model_used":      job.ModelUsed,
			"processing_time": job.Elapsed(time.Now()).Seconds(),
			"cost_estimate":   job.CostEstimate,
			"started_at":      job.StartedAt,
		},
	})
}

// ListJobs returns recent jobs, newest first, optionally filtered by status.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := domain.JobStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.JobStatusPending, domain.JobStatusRunning, domain.JobStatusComplete, domain.JobStatusError:
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unknown status filter")
		return
	}

	list := a.Registry.List(status)
	sort.Slice(list, func(i, j int) bool { return list[i].StartedAt.After(list[j].StartedAt) })

	items := make([]map[string]any, 0, len(list))
	for _, job := range list {
		items = append(items, map[string]any{
			"job_id":        job.ID,
			"input":         job.Input,
			"priority":      job.Priority,
			"status":        job.Status,
			"progress":      job.Progress,
			"model_used":    job.ModelUsed,
			"cost_estimate": job.CostEstimate,
			"started_at":    job.StartedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": items})
}
