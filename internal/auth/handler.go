package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sekolah/dashboard/internal/guard"
	"github.com/sekolah/dashboard/internal/platform/httpx"
	"github.com/sekolah/dashboard/internal/shared"
	"github.com/sekolah/dashboard/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	resolver       guard.Resolver
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver guard.Resolver, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		resolver:       resolver,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/signup", h.showSignup)
	r.Post("/signup", h.handleSignup)
	r.Post("/logout", h.handleLogout)
	r.Get("/api/auth/session", h.currentSession)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

type signupForm struct {
	Name            string `validate:"required,min=2,max=120"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
}

type signupPageData struct {
	Form   signupForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, http.StatusOK, loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	errs := h.validate(form)
	if len(errs) > 0 {
		h.renderLogin(w, r, http.StatusBadRequest, loginPageData{Form: form, Errors: errs})
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) && !errors.Is(err, shared.ErrBanned) {
			h.logger.Error("authenticate", slog.Any("error", err))
		}
		form.Password = ""
		h.renderLogin(w, r, http.StatusBadRequest, loginPageData{Form: form, Errors: map[string]string{view.GeneralError: shared.UserSafeMessage(err)}})
		return
	}

	h.startSession(w, r, sess, user, "Selamat datang kembali, "+user.Name)
}

// startSession binds user to a rotated session ID, records the session row
// and redirects to the role's dashboard.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, sess *shared.Session, user *User, greeting string) {
	sess.Login(user.ID)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: greeting})
	rec := SessionRecord{
		ID:        sess.ID,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(h.sessionManager.TTL()),
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
	if err := h.service.RegisterSession(r.Context(), rec); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	h.logger.Info("login", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	http.Redirect(w, r, guard.DashboardPath(user.Role), http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	if err := h.templates.Render(w, status, "pages/login.html", h.page(r, "Masuk", data)); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	h.renderSignup(w, r, http.StatusOK, signupPageData{})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := signupForm{
		Name:            strings.TrimSpace(r.PostFormValue("name")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("password_confirm"),
	}
	errs := h.validate(form)
	if len(errs) > 0 {
		form.Password, form.PasswordConfirm = "", ""
		h.renderSignup(w, r, http.StatusBadRequest, signupPageData{Form: form, Errors: errs})
		return
	}

	user, err := h.service.SignUp(r.Context(), SignUpInput{Name: form.Name, Email: form.Email, Password: form.Password})
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, shared.ErrEmailTaken) {
			h.logger.Error("sign up", slog.Any("error", err))
			status = http.StatusInternalServerError
		}
		form.Password, form.PasswordConfirm = "", ""
		h.renderSignup(w, r, status, signupPageData{Form: form, Errors: map[string]string{view.GeneralError: shared.UserSafeMessage(err)}})
		return
	}

	h.logger.Info("sign up", slog.String("user_id", user.ID))
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.startSession(w, r, sess, user, "Akun "+user.Email+" berhasil dibuat")
}

func (h *Handler) renderSignup(w http.ResponseWriter, r *http.Request, status int, data signupPageData) {
	if err := h.templates.Render(w, status, "pages/signup.html", h.page(r, "Daftar", data)); err != nil {
		h.logger.Error("render signup", slog.Any("error", err))
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.sessionManager.Revoke(r.Context(), sess.ID, sess.User()); err != nil {
			h.logger.Warn("revoke session", slog.Any("error", err))
		}
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *sessionUser `json:"user,omitempty"`
}

type sessionUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Dashboard string `json:"dashboard"`
}

// currentSession reports the identity bound to the request cookie.
func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	var id *guard.Identity
	if h.resolver != nil {
		resolved, err := h.resolver.Resolve(r)
		if err != nil {
			h.logger.Warn("resolve session", slog.Any("error", err))
		}
		if err == nil {
			id = resolved
		}
	}
	if id == nil {
		httpx.JSON(w, http.StatusOK, sessionResponse{})
		return
	}
	role := id.EffectiveRole()
	httpx.JSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		User: &sessionUser{
			ID:        id.UserID,
			Name:      id.Name,
			Email:     id.Email,
			Role:      string(role),
			Dashboard: guard.DashboardPath(role),
		},
	})
}

func (h *Handler) validate(form any) map[string]string {
	return view.FormErrors(h.validator.Struct(form))
}

func (h *Handler) page(r *http.Request, title string, data any) view.TemplateData {
	return view.NewPage(r, h.csrfManager, title, data)
}
