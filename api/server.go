/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: zerolog logger on the context, start/complete lines
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for frontend
  5. RequireUser:   X-User-ID on every /api route

ROUTE GROUPS:
  /api/parties/*    Directory, balances, statements
  /api/orders/*     Order lifecycle and preview
  /api/balances     Dashboard totals
  /api/ledger/*     Manual entries
  /api/admin/*      Reconciliation
  /api/scenarios/*  Demo data
  /metrics          Prometheus
  /healthz          Liveness + store ping

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Logging and user middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterOptions carries the router's collaborators.
type RouterOptions struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", UserHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireUser)

		r.Route("/parties", func(r chi.Router) {
			r.Get("/", h.ListParties)
			r.Post("/", h.CreateParty)
			r.Post("/resolve", h.ResolveParty)
			r.Get("/{id}", h.GetParty)
			r.Delete("/{id}", h.DeleteParty)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/statement", h.GetStatement)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Post("/preview", h.PreviewOrder)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}", h.UpdateOrder)
			r.Delete("/{id}", h.DeleteOrder)
			r.Get("/{id}/postings", h.GetOrderPostings)
		})

		r.Get("/balances", h.GetBalances)

		r.Route("/ledger", func(r chi.Router) {
			r.Post("/", h.CreateEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reconcile", h.Reconcile)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
