package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ngo-fms/fms/internal/auth"
	"github.com/ngo-fms/fms/internal/observability"
	"github.com/ngo-fms/fms/internal/platform/httpx"
	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/session"
	"github.com/ngo-fms/fms/internal/users"
	"github.com/ngo-fms/fms/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *session.Manager
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with FMS defaults. It fails only when a
// destination carries an invalid guard declaration.
func NewRouter(params RouterParams) (http.Handler, error) {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if session.PrincipalFromRequest(r).IsAuthenticated() {
			http.Redirect(w, r, rbac.DefaultLandingPath, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, rbac.DefaultLoginPath, http.StatusSeeOther)
	})

	r.Get(rbac.DefaultForbiddenPath, func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to view this page")
	})

	if params.AuthHandler != nil {
		params.AuthHandler.MountPages(r)
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	for _, d := range Destinations() {
		req, err := d.Requirement()
		if err != nil {
			return nil, err
		}
		r.With(params.RBACMiddleware.Require(req)).Get(d.Path, screenHandler(d))
	}

	r.Route("/api", func(r chi.Router) {
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAPI(rbac.RequireRole(rbac.RoleSuperAdmin)))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r, nil
}
