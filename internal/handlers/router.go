package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/photosync/photosort/internal/observability"
)

// NewRouter wires the status endpoints. httpMetrics may be nil.
func NewRouter(health *HealthHandler, status *StatusHandler, httpMetrics *observability.HTTPMetrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(observability.TracingMiddleware())
	if httpMetrics != nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	}

	r.Get("/health", health.HealthCheck)
	r.Get("/api/health", health.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", VersionHandler)
		r.Get("/status", status.GetStatus)
		r.Get("/runs/{id}", status.GetRun)
		r.Get("/runs/{id}/files", status.ListRunFiles)
	})

	return r
}
