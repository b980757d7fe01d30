package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/linkenthegreat/docex/internal/http/handlers"
	"github.com/linkenthegreat/docex/internal/middleware"
)

func NewRouter(app *handlers.App, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)

	r.Get("/healthz", app.Health)

	r.Route("/api/agent", func(r chi.Router) {
		r.Post("/extract", app.StartExtraction)
		r.Get("/extract/{id}/status", app.ExtractionStatus)
		r.Get("/extract/{id}/results", app.ExtractionResults)
		r.Get("/jobs", app.ListJobs)
		r.Get("/status", app.SystemStatus)
	})

	return r
}
