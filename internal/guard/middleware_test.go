package guard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah/dashboard/internal/access"
)

func staticResolver(id *Identity, err error) Resolver {
	return ResolverFunc(func(*http.Request) (*Identity, error) {
		return id, err
	})
}

func serve(t *testing.T, g *Guard, path string) (*httptest.ResponseRecorder, *Identity, bool) {
	t.Helper()
	var (
		reached bool
		seen    *Identity
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()
	g.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr, seen, reached
}

func TestMiddlewareForwardsMatchingRole(t *testing.T) {
	id := &Identity{UserID: "u1", Role: access.RoleAdmin}
	g := New(DefaultPolicy(), staticResolver(id, nil), nil, nil)

	rr, seen, reached := serve(t, g, "/admin/users")
	require.True(t, reached)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Same(t, id, seen)
}

func TestMiddlewareRedirectsMismatchedRole(t *testing.T) {
	g := New(DefaultPolicy(), staticResolver(&Identity{Role: access.RoleGuru}, nil), nil, nil)

	rr, _, reached := serve(t, g, "/admin/users")
	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/guru/dashboard", rr.Header().Get("Location"))
}

func TestMiddlewareFailsClosedOnResolverError(t *testing.T) {
	g := New(DefaultPolicy(), staticResolver(&Identity{Role: access.RoleAdmin}, errors.New("redis down")), nil, nil)

	rr, _, reached := serve(t, g, "/admin/dashboard")
	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}

func TestMiddlewareBypassesUnguardedPaths(t *testing.T) {
	calls := 0
	resolver := ResolverFunc(func(*http.Request) (*Identity, error) {
		calls++
		return nil, nil
	})
	g := New(DefaultPolicy(), resolver, nil, nil)

	for _, p := range []string{"/login", "/", "/administrator"} {
		rr, _, reached := serve(t, g, p)
		assert.True(t, reached, p)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Zero(t, calls)
}

func TestMiddlewareSkipsCancelledRequests(t *testing.T) {
	g := New(DefaultPolicy(), staticResolver(nil, nil), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/guru/dashboard", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Location"))
}

func TestMiddlewareCountsDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	g := New(DefaultPolicy(), staticResolver(nil, nil), nil, metrics)

	serve(t, g, "/guru/dashboard")
	serve(t, g, "/user/dashboard")

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.decisions.WithLabelValues("redirect", string(ReasonNoSession))))
}

func TestRequireIdentity(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, IdentityFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})

	anonymous := New(DefaultPolicy(), staticResolver(nil, nil), nil, nil)
	rr := httptest.NewRecorder()
	anonymous.RequireIdentity(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	signedIn := New(DefaultPolicy(), staticResolver(&Identity{UserID: "g1", Role: access.RoleGuru}, nil), nil, nil)
	rr = httptest.NewRecorder()
	signedIn.RequireIdentity(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
