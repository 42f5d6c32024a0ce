package users

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/guard"
	"github.com/sekolah/dashboard/internal/platform/httpx"
	"github.com/sekolah/dashboard/internal/shared"
	"github.com/sekolah/dashboard/internal/view"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
	views     map[Command]commandFunc
	actions   map[Command]commandFunc
}

// commandFunc handles one row command for the user identified in the path.
type commandFunc func(w http.ResponseWriter, r *http.Request, actor *guard.Identity, id string)

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service, templates: templates, csrf: csrf, validator: validator.New()}
	h.views = map[Command]commandFunc{
		CommandDetail: h.showDetail,
		CommandEdit:   h.showEdit,
	}
	h.actions = map[Command]commandFunc{
		CommandEdit:           h.submitEdit,
		CommandBan:            h.ban,
		CommandUnban:          h.unban,
		CommandDelete:         h.remove,
		CommandRevokeSessions: h.revokeSessions,
	}
	return h
}

// ListPath is the admin user table.
const ListPath = "/admin/users"

// MountRoutes registers the admin HTML routes. The router must sit behind
// the route guard so an identity is present.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(ListPath, h.listUsers)
	r.Get(ListPath+"/{id}/{command}", h.dispatch(h.views))
	r.Post(ListPath+"/{id}/{command}", h.dispatch(h.actions))
}

// MountAPI registers the JSON API relative to r.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/", h.apiList)
	r.Post("/", h.apiCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.apiGet)
		r.Patch("/", h.apiUpdate)
		r.Delete("/", h.apiRemove)
		r.Put("/role", h.apiSetRole)
		r.Put("/password", h.apiSetPassword)
		r.Post("/ban", h.apiBan)
		r.Delete("/ban", h.apiUnban)
		r.Get("/sessions", h.apiSessions)
		r.Delete("/sessions", h.apiRevokeSessions)
	})
}

func (h *Handler) dispatch(table map[Command]commandFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, err := ParseCommand(chi.URLParam(r, "command"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		fn, ok := table[cmd]
		if !ok {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		fn(w, r, guard.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	}
}

type listPageData struct {
	Users      []User
	Pagination shared.Pagination
	Query      ListQuery
	Errors     map[string]string
}

type detailPageData struct {
	User     *User
	Sessions []Session
}

type editForm struct {
	Name string `validate:"required,min=2,max=120"`
	Role string `validate:"required,oneof=admin guru user"`
}

type editPageData struct {
	User   *User
	Form   editForm
	Errors map[string]string
}

// ParseListQuery reads the list filters from URL query parameters.
func ParseListQuery(r *http.Request) ListQuery {
	q := DefaultListQuery()
	values := r.URL.Query()
	q.Search = values.Get("q")
	if v, err := strconv.Atoi(values.Get("limit")); err == nil {
		q.Limit = v
	}
	if v, err := strconv.Atoi(values.Get("offset")); err == nil {
		q.Offset = v
	}
	if v := values.Get("sortBy"); v != "" {
		q.SortBy = SortField(v)
	}
	if v := values.Get("sortDirection"); v != "" {
		q.SortDesc = strings.EqualFold(v, "desc")
	}
	return q.Normalize()
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	actor := guard.IdentityFromContext(r.Context())
	q := ParseListQuery(r)
	page, err := h.service.ListUsers(r.Context(), actor, q)
	if err != nil {
		h.logFailure("list users", err)
		h.render(w, r, httpx.StatusFor(err), "pages/admin_users.html", "Users", listPageData{
			Query:  q,
			Errors: map[string]string{view.GeneralError: shared.UserSafeMessage(err)},
		})
		return
	}
	h.render(w, r, http.StatusOK, "pages/admin_users.html", "Users", listPageData{
		Users:      page.Users,
		Pagination: shared.NewPagination(page.Limit, page.Offset, page.Total),
		Query:      q,
	})
}

func (h *Handler) showDetail(w http.ResponseWriter, r *http.Request, actor *guard.Identity, id string) {
	user, err := h.service.GetUser(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "get user", err)
		return
	}
	sessions, err := h.service.ListUserSessions(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "list sessions", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/admin_user_detail.html", user.Name, detailPageData{User: user, Sessions: sessions})
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request, actor *guard.Identity, id string) {
	user, err := h.service.GetUser(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "get user", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/admin_user_edit.html", "Edit User", editPageData{
		User: user,
		Form: editForm{Name: user.Name, Role: string(user.Role)},
	})
}

func (h *Handler) submitEdit(w http.ResponseWriter, r *http.Request, actor *guard.Identity, id string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := editForm{
		Name: strings.TrimSpace(r.PostFormValue("name")),
		Role: strings.TrimSpace(r.PostFormValue("role")),
	}
	// Both changes are checked up front so a rejected role change cannot
	// leave a rename behind.
	if !h.service.Permits(actor, editPermissions(form)) {
		h.fail(w, r, "edit user", fmt.Errorf("%w: edit user", shared.ErrForbidden))
		return
	}
	user, err := h.service.GetUser(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "get user", err)
		return
	}
	if form.Role == "" {
		form.Role = string(user.Role)
	}
	if errs := view.FormErrors(h.validator.Struct(form)); len(errs) > 0 {
		h.render(w, r, http.StatusBadRequest, "pages/admin_user_edit.html", "Edit User", editPageData{User: user, Form: form, Errors: errs})
		return
	}
	if form.Name != user.Name {
		if _, err := h.service.UpdateUser(r.Context(), actor, id, form.Name); err != nil {
			h.fail(w, r, "update user", err)
			return
		}
	}
	if role := access.Role(form.Role); role != user.Role {
		if _, err := h.service.SetRole(r.Context(), actor, id, role); err != nil {
			h.fail(w, r, "set role", err)
			return
		}
	}
	h.redirectWithFlash(w, r, ListPath, "success", "User berhasil diperbarui")
}

func editPermissions(form editForm) access.Permissions {
	actions := []access.Action{access.ActionGet}
	if form.Name != "" {
		actions = append(actions, access.ActionUpdate)
	}
	if form.Role != "" {
		actions = append(actions, access.ActionSetRole)
	}
	return access.Permissions{access.ResourceUser: actions}
}

func (h *Handler) ban(w http.ResponseWriter, r *http.Request, actor *guard.Identity, id string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := BanInput{Reason: r.PostFormValue("reason")}
	if days, err := strconv.Atoi(r.PostFormValue("expires_in_days")); err == nil && days > 0 {
		in.ExpiresIn = time.Duration(days) * 24 * time.Hour
	}
	if _, err := h.service.BanUser(r.Context(), actor, id, in); err != nil {
		h.fail(w, r, "ban user", err)
		return
	}
	h.redirectWithFlash(w, r, ListPath, "success", "User berhasil diblokir")
}

func (h *Handler) unban(w http.ResponseWriter, r *http.Request, actor *guard.Identity, id string) {
	if _, err := h.service.UnbanUser(r.Context(), actor, id); err != nil {
		h.fail(w, r, "unban user", err)
		return
	}
	h.redirectWithFlash(w, r, ListPath, "success", "Blokir user dibuka")
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, actor *guard.Identity, id string) {
	if err := h.service.RemoveUser(r.Context(), actor, id); err != nil {
		h.fail(w, r, "remove user", err)
		return
	}
	h.redirectWithFlash(w, r, ListPath, "success", "User berhasil dihapus")
}

func (h *Handler) revokeSessions(w http.ResponseWriter, r *http.Request, actor *guard.Identity, id string) {
	if err := h.service.RevokeUserSessions(r.Context(), actor, id); err != nil {
		h.fail(w, r, "revoke sessions", err)
		return
	}
	h.redirectWithFlash(w, r, ListPath+"/"+id+"/"+string(CommandDetail), "success", "Semua sesi user dicabut")
}

// fail answers an HTML request that hit a service error. Unsafe methods
// redirect back to the list with a flash; reads get a plain error page.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logFailure(op, err)
	if r.Method != http.MethodGet {
		h.redirectWithFlash(w, r, ListPath, "error", shared.UserSafeMessage(err))
		return
	}
	status := httpx.StatusFor(err)
	http.Error(w, shared.UserSafeMessage(err), status)
}

func (h *Handler) logFailure(op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
		return
	}
	h.logger.Warn(op, slog.Any("error", err))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, template, title string, data any) {
	if err := h.templates.Render(w, status, template, view.NewPage(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
