package handlers

import (
	"net/http"

	"github.com/linkenthegreat/docex/internal/domain"
	"github.com/linkenthegreat/docex/internal/selector"
)

// SystemStatus reports model availability, job counts, aggregate performance,
// a recommended submission priority, and the per-priority cost table.
func (a *App) SystemStatus(w http.ResponseWriter, r *http.Request) {
	availability := a.Prober.Probe(r.Context())

	counts := map[string]int{}
	for _, job := range a.Registry.List("") {
		counts[string(job.Status)]++
	}

	costEstimates := map[string]map[string]any{}
	for _, p := range []domain.Priority{
		domain.PriorityCost,
		domain.PriorityQuality,
		domain.PrioritySpeed,
		domain.PriorityPrivacy,
	} {
		model, cost := selector.PlannedModel(p)
		costEstimates[string(p)] = map[string]any{
			"model":              model,
			"cost_per_document":  cost,
			"estimated_duration": selector.EstimatedDuration(p).Seconds(),
		}
	}

	a.json(w, http.StatusOK, map[string]any{
		"models_available":     availability,
		"job_counts":           counts,
		"performance":          a.Tracker.Snapshot(),
		"recommended_priority": selector.RecommendPriority(availability),
		"cost_estimates":       costEstimates,
	})
}
