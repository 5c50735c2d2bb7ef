package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atlas-auth/atlas-auth/internal/accounts"
	audithttp "github.com/atlas-auth/atlas-auth/internal/audit/http"
	"github.com/atlas-auth/atlas-auth/internal/authz"
	"github.com/atlas-auth/atlas-auth/internal/observability"
	"github.com/atlas-auth/atlas-auth/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AccountsHandler *accounts.Handler
	AuditHandler    *audithttp.Handler
	AuthMiddleware  authz.Middleware
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1/auth", func(ar chi.Router) {
		params.AccountsHandler.MountRoutes(ar,
			params.AuthMiddleware.Authenticate,
			RecoveryRateLimit(params.Config))
	})

	r.Route("/api/v1/users/{userID}", func(ur chi.Router) {
		ur.Use(params.AuthMiddleware.Authenticate)
		ur.Use(params.AuthMiddleware.RequireOwner("userID"))
		params.AccountsHandler.MountUserRoutes(ur)
	})

	if params.AuditHandler != nil {
		r.Route("/api/v1/audit", func(tr chi.Router) {
			tr.Use(params.AuthMiddleware.Authenticate)
			tr.Use(params.AuthMiddleware.RequireRoles(params.Config.AdministrativeRole()))
			params.AuditHandler.MountRoutes(tr)
		})
	}

	if params.JobsHandler != nil {
		r.Route("/api/v1/jobs", func(jr chi.Router) {
			jr.Use(params.AuthMiddleware.Authenticate)
			jr.Use(params.AuthMiddleware.RequireRoles(params.Config.AdministrativeRole()))
			params.JobsHandler.MountRoutes(jr)
		})
	}

	return r
}
