package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/aluiziolira/motofit/metrics"
)

// NewRouter mounts the API under /api/v1 and the Prometheus endpoint at
// /metrics.
func NewRouter(h *Handler, mw *MiddlewareConfig, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(logger, m))
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())

		r.Get("/health", h.Health)
		r.Get("/catalog/facets", h.Facets)

		r.Route("/recommendations", func(r chi.Router) {
			r.Post("/", h.CreateRecommendation)
			r.Get("/", h.GetRecommendations)
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", h.ListFavorites)
			r.Put("/{model}", h.AddFavorite)
			r.Delete("/{model}", h.RemoveFavorite)
		})

		r.Get("/dashboard", h.Dashboard)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	})

	return r
}
