package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/linkenthegreat/docex/internal/executor"
	"github.com/linkenthegreat/docex/internal/jobs"
	"github.com/linkenthegreat/docex/internal/stats"
)

// App is the handler container: every route hangs off the injected
// orchestration components, so the HTTP layer stays a thin shell over the
// core.
type App struct {
	Executor *executor.Executor
	Registry *jobs.Registry
	Tracker  *stats.Tracker
	Prober   executor.AvailabilitySource
	Logger   zerolog.Logger
}

func NewApp(exec *executor.Executor, registry *jobs.Registry, tracker *stats.Tracker, prober executor.AvailabilitySource, logger zerolog.Logger) *App {
	return &App{
		Executor: exec,
		Registry: registry,
		Tracker:  tracker,
		Prober:   prober,
		Logger:   logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
