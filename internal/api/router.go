package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/errormonitoring/backend/internal/api/middleware"
	"github.com/errormonitoring/backend/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	IngestError  http.HandlerFunc
	ListErrors   http.HandlerFunc
	ResolveError http.HandlerFunc

	ListAlerts           http.HandlerFunc
	ListUnresolvedAlerts http.HandlerFunc
	CreateAlert          http.HandlerFunc
	ResolveAlert         http.HandlerFunc
	DeleteAlert          http.HandlerFunc

	ListApplications  http.HandlerFunc
	CreateApplication http.HandlerFunc
	UpdateApplication http.HandlerFunc
	PauseApplication  http.HandlerFunc
	ResumeApplication http.HandlerFunc
	DeleteApplication http.HandlerFunc

	ListAudit http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Ingestion: authenticated by per-application API key, not a user token
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.AuthenticateIngest)
		r.Use(deps.RateLimit.LimitIngest)

		r.Post("/api/v1/errors", orNotImplemented(deps.IngestError))
	})

	// Dashboard routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/errors", orNotImplemented(deps.ListErrors))

		r.Get("/api/v1/alerts", orNotImplemented(deps.ListAlerts))
		r.Get("/api/v1/alerts/unresolved", orNotImplemented(deps.ListUnresolvedAlerts))

		r.Get("/api/v1/applications", orNotImplemented(deps.ListApplications))

		// Write routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireWriter)

			r.Put("/api/v1/errors/{id}/resolve", orNotImplemented(deps.ResolveError))

			r.Post("/api/v1/alerts", orNotImplemented(deps.CreateAlert))
			r.Put("/api/v1/alerts/{id}/resolve", orNotImplemented(deps.ResolveAlert))
			r.Delete("/api/v1/alerts/{id}", orNotImplemented(deps.DeleteAlert))

			r.Post("/api/v1/applications", orNotImplemented(deps.CreateApplication))
			r.Put("/api/v1/applications/{id}", orNotImplemented(deps.UpdateApplication))
			r.Put("/api/v1/applications/{id}/pause", orNotImplemented(deps.PauseApplication))
			r.Put("/api/v1/applications/{id}/resume", orNotImplemented(deps.ResumeApplication))
			r.Delete("/api/v1/applications/{id}", orNotImplemented(deps.DeleteApplication))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireAdmin)

			r.Get("/api/v1/audit", orNotImplemented(deps.ListAudit))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
