/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (logrus)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard
  5. Auth:       Bearer token on everything under /api except /api/public

ROUTE GROUPS:
  /health                Liveness
  /api/public/*          Plate lookup, no token
  /api/vehicles/*        Vehicle registry, payments, exemptions
  /api/exemptions/*      Approval queue (admin)
  /api/policy            Policy in force
  /api/admin/*           Sweeps (admin)
  /api/scenarios/*       Demo scenarios (admin)

ROLES:
  Handlers enforce the domain rules through taxation.Service. RequireRole
  only guards routes the service has no opinion on (sweeps, scenarios,
  vehicle listing).

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/middleware.go: Token validation
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hassan3xl/taxation-backend/auth"
	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/sirupsen/logrus"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	Auth           *auth.Service
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	authn := auth.NewMiddleware(opts.Auth)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/public/status/{plate}", h.PublicStatus)

		r.Group(func(r chi.Router) {
			r.Use(authn.Authenticate)

			r.Get("/policy", h.GetPolicy)

			r.Route("/vehicles", func(r chi.Router) {
				r.With(authn.RequireRole(generic.RoleAgent)).Get("/", h.ListVehicles)
				r.Post("/", h.RegisterVehicle)
				r.Get("/{id}", h.GetVehicle)
				r.Get("/{id}/compliance", h.GetCompliance)
				r.Post("/{id}/approve", h.ApproveVehicle)
				r.Post("/{id}/active", h.SetVehicleActive)
				r.Get("/{id}/payments", h.ListPayments)
				r.Post("/{id}/payments", h.RecordPayment)
				r.Get("/{id}/exemptions", h.ListVehicleExemptions)
				r.Post("/{id}/exemptions", h.SubmitExemption)
			})

			r.Route("/exemptions", func(r chi.Router) {
				r.Get("/pending", h.ListPendingExemptions)
				r.Post("/{id}/approve", h.ApproveExemption)
				r.Post("/{id}/reject", h.RejectExemption)
				r.Post("/{id}/decide", h.DecideExemption)
				r.Delete("/{id}", h.DeleteExemption)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(authn.RequireRole(generic.RoleAdmin))
				r.Post("/sweep", h.TriggerSweep)
				r.Get("/sweeps", h.ListSweepRuns)
			})

			r.Route("/scenarios", func(r chi.Router) {
				r.Use(authn.RequireRole(generic.RoleAdmin))
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		})
	})

	return r
}

// requestLogger logs one line per request with its status and duration.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			entry := log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
			})
			switch {
			case ww.Status() >= 500:
				entry.Error("request failed")
			case ww.Status() >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request served")
			}
		})
	}
}
