// Package dashboard serves the role landing pages.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/guard"
	"github.com/sekolah/dashboard/internal/shared"
	"github.com/sekolah/dashboard/internal/users"
	"github.com/sekolah/dashboard/internal/view"
)

// UserLister is the part of users.Service the dashboards read from.
type UserLister interface {
	ListUsers(ctx context.Context, actor *guard.Identity, q users.ListQuery) (users.Page, error)
}

// Handler renders the dashboards.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	registry  *access.Registry
	users     UserLister
	resolver  guard.Resolver
	loginPath string
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, registry *access.Registry, users UserLister, resolver guard.Resolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = access.NewRegistry()
	}
	return &Handler{
		logger:    logger,
		templates: templates,
		csrf:      csrf,
		registry:  registry,
		users:     users,
		resolver:  resolver,
		loginPath: guard.DefaultLoginPath,
	}
}

// MountRoot registers the unguarded landing redirect.
func (h *Handler) MountRoot(r chi.Router) {
	r.Get("/", h.root)
}

// MountRoutes registers the dashboards. The router must sit behind the
// route guard.
func (h *Handler) MountRoutes(r chi.Router) {
	for _, role := range access.Roles() {
		r.Get(guard.DashboardPath(role), h.dashboard)
	}
	r.Get("/admin/settings", h.settings)
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	var id *guard.Identity
	if h.resolver != nil {
		resolved, err := h.resolver.Resolve(r)
		if err != nil {
			h.logger.Warn("resolve session", slog.Any("error", err))
		} else {
			id = resolved
		}
	}
	if id == nil {
		http.Redirect(w, r, h.loginPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, guard.DashboardPath(id.EffectiveRole()), http.StatusSeeOther)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	id := guard.IdentityFromContext(r.Context())
	role := id.EffectiveRole()
	reg := h.registryFor(r)
	data := map[string]any{"Statement": reg.Statement(role)}

	if h.users != nil && reg.HasPermission(role, access.ResourceUser, access.ActionList) {
		q := users.DefaultListQuery()
		page, err := h.users.ListUsers(r.Context(), id, q)
		if err != nil {
			h.logger.Error("dashboard list users", slog.Any("error", err))
		} else {
			data["Total"] = page.Total
			if role == access.RoleGuru {
				data["Users"] = page.Users
			}
		}
	}
	h.render(w, r, "Dashboard "+view.RoleLabel(role), data)
}

type matrixRow struct {
	Role    access.Role
	User    []access.Action
	Session []access.Action
}

func (h *Handler) settings(w http.ResponseWriter, r *http.Request) {
	reg := h.registryFor(r)
	rows := make([]matrixRow, 0, len(access.Roles()))
	for _, role := range access.Roles() {
		st := reg.Statement(role)
		rows = append(rows, matrixRow{Role: role, User: st[access.ResourceUser], Session: st[access.ResourceSession]})
	}
	if err := h.templates.Render(w, http.StatusOK, "pages/admin_settings.html", view.NewPage(r, h.csrf, "Settings", map[string]any{"Matrix": rows})); err != nil {
		h.logger.Error("render settings", slog.Any("error", err))
	}
}

// registryFor prefers the registry installed on the request by the router.
func (h *Handler) registryFor(r *http.Request) *access.Registry {
	if reg := access.RegistryFromContext(r.Context()); reg != nil {
		return reg
	}
	return h.registry
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, title string, data map[string]any) {
	if err := h.templates.Render(w, http.StatusOK, "pages/dashboard.html", view.NewPage(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
	}
}
