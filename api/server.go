/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/refresh/*   Ingestion trigger and run log
  /api/revenue/*   Pre-aggregated revenue reports (cached)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/refresh", func(r chi.Router) {
			r.Post("/trigger", h.TriggerRefresh)
			r.Get("/logs", h.ListRefreshLogs)
		})

		r.Route("/revenue", func(r chi.Router) {
			r.Get("/total", h.TotalRevenue)
			r.Get("/by-product", h.RevenueByProduct)
			r.Get("/by-category", h.RevenueByCategory)
			r.Get("/by-region", h.RevenueByRegion)
			r.Get("/trends", h.RevenueTrends)
		})
	})

	return r
}
