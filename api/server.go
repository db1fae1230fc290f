package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter mounts the API under /api/v1 with the standard middleware
// stack.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/targets", func(r chi.Router) {
			r.Get("/", h.ListTargets)
			r.Post("/", h.CreateTarget)
			r.Post("/initialize", h.InitializeTargets)
			r.Get("/comparison/{fiscalYear}", h.Comparison)
			r.Get("/attention/{fiscalYear}", h.Attention)
			r.Get("/{id}", h.GetTarget)
			r.Patch("/{id}", h.UpdateTarget)
			r.Delete("/{id}", h.DeleteTarget)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/cache/clear", h.ClearCaches)
		})
	})

	return r
}
