package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medtrack/claims-app/claims/auth"
	"github.com/medtrack/claims-app/claims/logging"
	"github.com/medtrack/claims-app/claims/monitoring"
	"github.com/medtrack/claims-app/middleware"
)

// NewRouter sets up the full API surface. Login is the only endpoint open to
// anonymous callers; everything else under /api requires a valid token.
// The static /claims/history/all route is registered before /claims/{claimID}
// so chi resolves it ahead of the wildcard.
func NewRouter(api *API) http.Handler {
	r := chi.NewRouter()
	m := monitoring.GetMonitor()
	r.Use(middleware.NewTransactionID)
	r.Use(auth.ParseToken)
	r.Use(logging.NewStructuredLogger())

	r.Post(m.WrapHandler("/api/auth/login", api.Login))

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireTokenAuth)

		r.Get(m.WrapHandler("/claims", api.SearchClaims))
		r.Get(m.WrapHandler("/claims/history/all", api.GlobalHistory))
		r.Get(m.WrapHandler("/claims/{claimID}", api.GetClaim))
		r.Put(m.WrapHandler("/claims/{claimID}", api.UpdateClaim))
		r.Get(m.WrapHandler("/claims/{claimID}/history", api.ClaimHistory))

		r.Route("/users", func(r chi.Router) {
			r.Get(m.WrapHandler("/", api.ListUsers))
			r.With(auth.RequireRole("admin")).Post(m.WrapHandler("/", api.CreateUser))
			r.With(auth.RequireRole("admin")).Put(m.WrapHandler("/{userID}", api.UpdateUser))
			r.With(auth.RequireRole("admin")).Delete(m.WrapHandler("/{userID}", api.DeactivateUser))
		})
	})

	return r
}

// NewHTTPRouter serves the unauthenticated operational endpoints.
func NewHTTPRouter(api *API) http.Handler {
	r := chi.NewRouter()
	m := monitoring.GetMonitor()
	r.Use(middleware.NewTransactionID)
	r.Get(m.WrapHandler("/_version", api.Version))
	r.Get(m.WrapHandler("/_health", api.HealthCheck))
	return r
}
