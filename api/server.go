/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/vendors/*                              Vendor registry
  /api/vendors/{vendorID}/customers/*         Customer registry
  /api/vendors/{vendorID}/entries/*           Ledger writes and reads
  /api/vendors/{vendorID}/summary             Period summaries

MUTABILITY NOTE:
  There are intentionally no PUT or DELETE routes for entries. The ledger
  is append-only; corrections are made by appending compensating entries.

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
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/vendors", func(r chi.Router) {
			r.Get("/", h.ListVendors)
			r.Post("/", h.CreateVendor)

			r.Route("/{vendorID}", func(r chi.Router) {
				r.Get("/", h.GetVendor)

				// Customer registry
				r.Route("/customers", func(r chi.Router) {
					r.Get("/", h.ListCustomers)
					r.Post("/", h.CreateCustomer)
					r.Get("/{customerID}", h.GetCustomer)
					r.Get("/{customerID}/ledger", h.GetCustomerLedger)
				})

				// Ledger entries: append and read only, no mutation routes
				r.Route("/entries", func(r chi.Router) {
					r.Post("/", h.CreateEntry)
					r.Get("/", h.GetHistory)
					r.Get("/{entryID}", h.GetEntry)
				})

				r.Get("/summary", h.GetSummary)
			})
		})
	})

	return r
}
