package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/auth"
	"github.com/sekolah/dashboard/internal/dashboard"
	"github.com/sekolah/dashboard/internal/guard"
	"github.com/sekolah/dashboard/internal/observability"
	"github.com/sekolah/dashboard/internal/seed"
	"github.com/sekolah/dashboard/internal/shared"
	"github.com/sekolah/dashboard/internal/users"
	"github.com/sekolah/dashboard/jobs"
	"github.com/sekolah/dashboard/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	Registry         *access.Registry
	Guard            *guard.Guard
	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	UsersHandler     *users.Handler
	SeedHandler      *seed.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with dashboard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Registry:       params.Registry,
		Guard:          params.Guard,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.AuthHandler.MountRoutes(r)
	params.DashboardHandler.MountRoot(r)
	if params.SeedHandler != nil {
		params.SeedHandler.MountRoutes(r)
	}

	params.DashboardHandler.MountRoutes(r)
	if params.UsersHandler != nil {
		params.UsersHandler.MountRoutes(r)
	}

	if params.UsersHandler != nil {
		r.Route("/api/admin/users", func(r chi.Router) {
			r.Use(params.Guard.RequireIdentity)
			params.UsersHandler.MountAPI(r)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers cache static assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
