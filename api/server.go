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
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the shop frontend

ROUTE GROUPS:
  /api/schemes/*       Scheme templates
  /api/enrollments/*   Enrollments, payments, status, redemption
  /api/customers/*     Thin customer records
  /healthz             Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public;
  deploy behind the shop gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Scheme routes
		r.Route("/schemes", func(r chi.Router) {
			r.Get("/", h.ListSchemes)
			r.Post("/", h.CreateScheme)
			r.Get("/{id}", h.GetScheme)
			r.Put("/{id}/active", h.SetSchemeActive)
		})

		// Enrollment routes
		r.Route("/enrollments", func(r chi.Router) {
			r.Get("/", h.ListEnrollments)
			r.Post("/", h.CreateEnrollment)
			r.Get("/{id}", h.GetEnrollment)
			r.Get("/{id}/status", h.GetEnrollmentStatus)
			r.Get("/{id}/transactions", h.ListTransactions)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Post("/{id}/fines", h.RecordFine)
			r.Post("/{id}/adjustments", h.RecordAdjustment)
			r.Get("/{id}/maturity", h.PreviewMaturity)
			r.Post("/{id}/redeem", h.Redeem)
			r.Get("/{id}/redemption", h.GetRedemption)
			r.Get("/{id}/reconcile", h.ReconcileEnrollment)
			r.Post("/{id}/cancel", h.CancelEnrollment)
		})

		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
		})
	})

	return r
}
