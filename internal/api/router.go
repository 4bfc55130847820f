// Package api assembles the ClipHaven HTTP API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cliphaven/cliphaven/internal/api/handlers"
	"github.com/cliphaven/cliphaven/internal/api/middleware"
	"github.com/cliphaven/cliphaven/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers, auth *middleware.APIKeyAuth) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*", "app://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-Trace-Id"},
		MaxAge:         300,
	}))
	if auth != nil {
		r.Use(auth.Middleware)
	}

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.CaptureItem)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetItem)
				r.Delete("/", h.DeleteItem)
				r.Post("/tags", h.RetagItem)
			})
		})

		r.Post("/ask", h.Ask)
		r.Post("/ask/stream", h.AskStream)
		r.Post("/analyze-image", h.AnalyzeImage)

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", h.ListProviders)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/probe", h.ProbeProvider)
				r.Put("/credential", h.SaveCredential)
				r.Delete("/credential", h.DeleteCredential)
			})
		})

		r.Get("/usage", h.UsageToday)
		r.Get("/usage/range", h.UsageRange)

		r.Get("/search", h.SearchItems)
		r.Route("/search/sessions", func(r chi.Router) {
			r.Post("/", h.OpenSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.CloseSession)
				r.Post("/query", h.QuerySession)
				r.Post("/select", h.MoveSelection)
				r.Get("/events", h.SessionEvents)
			})
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "cliphaven",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "cliphaven",
		})
	}
}
