package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/guard"
	"github.com/sekolah/dashboard/internal/shared"
	"github.com/sekolah/dashboard/internal/users"
	"github.com/sekolah/dashboard/internal/view"
)

type listerStub struct {
	calls int
	err   error
}

func (l *listerStub) ListUsers(_ context.Context, _ *guard.Identity, _ users.ListQuery) (users.Page, error) {
	l.calls++
	if l.err != nil {
		return users.Page{}, l.err
	}
	return users.Page{Users: []users.User{{ID: "s1", Name: "Siswa Satu", Email: "siswa1@test.com", Role: access.RoleUser}}, Total: 1}, nil
}

func newRouter(t *testing.T, id *guard.Identity, lister UserLister) *chi.Mux {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(nil, templates, shared.NewCSRFManager("secret"), access.NewRegistry(), lister, guard.ResolverFunc(func(*http.Request) (*guard.Identity, error) {
		return id, nil
	}))
	g := guard.New(guard.DefaultPolicy(), guard.ResolverFunc(func(*http.Request) (*guard.Identity, error) {
		return id, nil
	}), nil, nil)

	r := chi.NewRouter()
	h.MountRoot(r)
	r.Group(func(r chi.Router) {
		r.Use(g.Middleware)
		h.MountRoutes(r)
	})
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestRootRedirects(t *testing.T) {
	rr := get(newRouter(t, nil, nil), "/")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	for _, role := range access.Roles() {
		rr = get(newRouter(t, &guard.Identity{UserID: "x", Role: role}, nil), "/")
		assert.Equal(t, "/"+string(role)+"/dashboard", rr.Header().Get("Location"))
	}
}

func TestGuruDashboardListsUsers(t *testing.T) {
	lister := &listerStub{}
	rr := get(newRouter(t, &guard.Identity{UserID: "g1", Name: "Bu Guru", Role: access.RoleGuru}, lister), "/guru/dashboard")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Bu Guru")
	assert.Contains(t, body, "siswa1@test.com")
	assert.Equal(t, 1, lister.calls)
}

func TestUserDashboardSkipsListing(t *testing.T) {
	lister := &listerStub{}
	rr := get(newRouter(t, &guard.Identity{UserID: "u1", Name: "Siswa", Role: access.RoleUser}, lister), "/user/dashboard")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, lister.calls)
	assert.NotContains(t, rr.Body.String(), "Daftar User")
}

func TestDashboardSurvivesListFailure(t *testing.T) {
	lister := &listerStub{err: errors.New("db down")}
	rr := get(newRouter(t, &guard.Identity{UserID: "a1", Name: "Admin", Role: access.RoleAdmin}, lister), "/admin/dashboard")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWrongRoleIsRedirected(t *testing.T) {
	rr := get(newRouter(t, &guard.Identity{UserID: "g1", Role: access.RoleGuru}, nil), "/admin/settings")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/guru/dashboard", rr.Header().Get("Location"))
}

func TestSettingsShowsMatrix(t *testing.T) {
	rr := get(newRouter(t, &guard.Identity{UserID: "a1", Role: access.RoleAdmin}, nil), "/admin/settings")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "set-password")
	assert.Contains(t, body, "Guru")
}

func TestDashboardUsesRequestRegistry(t *testing.T) {
	lister := &listerStub{}
	r := newRouter(t, &guard.Identity{UserID: "g1", Role: access.RoleGuru}, lister)
	req := httptest.NewRequest(http.MethodGet, "/guru/dashboard", nil)
	req = req.WithContext(access.ContextWithRegistry(req.Context(), &access.Registry{}))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, lister.calls)
}
