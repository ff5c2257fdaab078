/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in warning logs
  2. RealIP:     Client address from X-Forwarded-For / X-Real-IP
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the back-office frontend
  6. RateLimit:  Per-client token bucket (skipped when RPS <= 0)

ROUTE GROUPS:
  /api/allocations, /api/reports/*   Discount allocation and sales reports
  /api/happy-hours/*, /api/pricing/* Happy-hour rules and price resolution
  /api/suppliers/{id}/*              Supplier ledgers
  /api/closures/*                    End-of-day cash closures
  /api/scenarios/*                   Demo data (resets the database)
  /api/health                        Liveness + database ping

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - ratelimit.go: Rate limiter
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the transport settings for NewRouter.
type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      RateLimiterConfig
}

// DefaultRouterConfig matches the config package defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		RateLimit:      DefaultRateLimiterConfig(),
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
	}))
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(NewClientRateLimiter(cfg.RateLimit).Middleware)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Sales
		r.Post("/allocations", h.Allocate)
		r.Post("/reports/sales", h.SalesReport)

		// Happy hours
		r.Route("/happy-hours", func(r chi.Router) {
			r.Get("/", h.ListHappyHours)
			r.Post("/", h.CreateHappyHour)
			r.Delete("/{id}", h.DeleteHappyHour)
		})
		r.Post("/pricing/resolve", h.ResolvePrices)

		// Supplier ledgers
		r.Route("/suppliers/{id}", func(r chi.Router) {
			r.Get("/transactions", h.ListSupplierTransactions)
			r.Post("/transactions", h.RecordSupplierTransaction)
			r.Delete("/transactions/{txID}", h.DeleteSupplierTransaction)
			r.Post("/recompute", h.RecomputeSupplier)
			r.Get("/verify", h.VerifySupplier)
			r.Get("/summary", h.SupplierSummary)
		})

		// Cash closures
		r.Route("/closures", func(r chi.Router) {
			r.Post("/reconcile", h.ReconcileClosure)
			r.Get("/", h.ListClosures)
			r.Post("/", h.CreateClosure)
			r.Get("/{id}", h.GetClosure)
			r.Post("/{id}/expenses", h.AddClosureExpense)
		})

		// Demo scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
