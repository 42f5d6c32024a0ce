package users

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/guard"
	"github.com/sekolah/dashboard/internal/platform/httpx"
)

type updateRequest struct {
	Name string `json:"name"`
}

type roleRequest struct {
	Role access.Role `json:"role"`
}

type passwordRequest struct {
	NewPassword string `json:"newPassword"`
}

type banRequest struct {
	BanReason string `json:"banReason"`
	// BanExpiresIn is in seconds; zero bans indefinitely.
	BanExpiresIn int64 `json:"banExpiresIn"`
}

type userResponse struct {
	User *User `json:"user"`
}

func (h *Handler) respond(w http.ResponseWriter, err error) {
	h.logFailure("users api", err)
	httpx.RespondError(w, err)
}

func (h *Handler) apiList(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListUsers(r.Context(), guard.IdentityFromContext(r.Context()), ParseListQuery(r))
	if err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) apiCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.respond(w, err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), guard.IdentityFromContext(r.Context()), in)
	if err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, userResponse{User: user})
}

func (h *Handler) apiGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), guard.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, userResponse{User: user})
}

func (h *Handler) apiUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respond(w, err)
		return
	}
	user, err := h.service.UpdateUser(r.Context(), guard.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, userResponse{User: user})
}

func (h *Handler) apiRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveUser(r.Context(), guard.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) apiSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respond(w, err)
		return
	}
	role, ok := access.ParseRole(string(req.Role))
	if !ok {
		role = req.Role
	}
	user, err := h.service.SetRole(r.Context(), guard.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), role)
	if err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, userResponse{User: user})
}

func (h *Handler) apiSetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respond(w, err)
		return
	}
	if err := h.service.SetPassword(r.Context(), guard.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.NewPassword); err != nil {
		h.respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) apiBan(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.respond(w, err)
			return
		}
	}
	in := BanInput{Reason: req.BanReason, ExpiresIn: time.Duration(req.BanExpiresIn) * time.Second}
	user, err := h.service.BanUser(r.Context(), guard.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, userResponse{User: user})
}

func (h *Handler) apiUnban(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.UnbanUser(r.Context(), guard.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, userResponse{User: user})
}

func (h *Handler) apiSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListUserSessions(r.Context(), guard.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) apiRevokeSessions(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RevokeUserSessions(r.Context(), guard.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
