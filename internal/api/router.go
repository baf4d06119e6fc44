// Package api wires the HTTP surface of the DialMap server.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/dialmap/dialmap/internal/api/middleware"
	"github.com/dialmap/dialmap/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	CreateProject http.HandlerFunc
	ListProjects  http.HandlerFunc
	GetProject    http.HandlerFunc
	DeleteProject http.HandlerFunc

	Discover    http.HandlerFunc
	ListJobs    http.HandlerFunc
	GetJob      http.HandlerFunc
	ResumeJob   http.HandlerFunc
	ListJobLogs http.HandlerFunc
	ListNodes   http.HandlerFunc

	ListTestCases   http.HandlerFunc
	ExecuteTestCase http.HandlerFunc
	ListTestRuns    http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/projects", orNotImplemented(deps.CreateProject))
		r.Get("/api/v1/projects", orNotImplemented(deps.ListProjects))
		r.Get("/api/v1/projects/{projectID}", orNotImplemented(deps.GetProject))
		r.Delete("/api/v1/projects/{projectID}", orNotImplemented(deps.DeleteProject))

		r.Post("/api/v1/projects/{projectID}/discover", orNotImplemented(deps.Discover))
		r.Get("/api/v1/projects/{projectID}/jobs", orNotImplemented(deps.ListJobs))
		r.Get("/api/v1/projects/{projectID}/nodes", orNotImplemented(deps.ListNodes))

		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJob))
		r.Post("/api/v1/jobs/{jobID}/resume", orNotImplemented(deps.ResumeJob))
		r.Get("/api/v1/jobs/{jobID}/logs", orNotImplemented(deps.ListJobLogs))

		r.Get("/api/v1/projects/{projectID}/testcases", orNotImplemented(deps.ListTestCases))
		r.Post("/api/v1/testcases/{testCaseID}/execute", orNotImplemented(deps.ExecuteTestCase))
		r.Get("/api/v1/projects/{projectID}/runs", orNotImplemented(deps.ListTestRuns))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
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
