package seed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/auth"
	"github.com/sekolah/dashboard/internal/shared"
)

type fakeAccounts struct {
	byEmail   map[string]*auth.User
	failEmail string
	signups   int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byEmail: map[string]*auth.User{}}
}

func (f *fakeAccounts) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	if email == f.failEmail {
		return nil, errors.New("connection reset")
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeAccounts) UpdateRole(_ context.Context, id string, role access.Role) error {
	for _, u := range f.byEmail {
		if u.ID == id {
			u.Role = role
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeAccounts) SignUp(_ context.Context, in auth.SignUpInput) (*auth.User, error) {
	f.signups++
	u := &auth.User{ID: "id-" + in.Email, Name: in.Name, Email: strings.ToLower(in.Email), Role: access.DefaultRole}
	f.byEmail[u.Email] = u
	return u, nil
}

func statuses(r Report) []string {
	out := make([]string, 0, len(r.Users))
	for _, u := range r.Users {
		out = append(out, u.Status)
	}
	return out
}

func TestSeederIsIdempotent(t *testing.T) {
	accounts := newFakeAccounts()
	seeder := NewSeeder(accounts, accounts, "", nil)

	first := seeder.Run(context.Background())
	assert.Equal(t, []string{StatusCreated, StatusCreated, StatusCreated}, statuses(first))
	assert.Equal(t, DefaultPassword, first.Credentials.Password)
	assert.Equal(t, access.RoleAdmin, accounts.byEmail["admin@test.com"].Role)
	assert.Equal(t, access.RoleGuru, accounts.byEmail["guru@test.com"].Role)

	accounts.byEmail["guru@test.com"].Role = access.RoleUser
	second := seeder.Run(context.Background())
	assert.Equal(t, []string{StatusUpdated, StatusUpdated, StatusUpdated}, statuses(second))
	assert.Equal(t, access.RoleGuru, accounts.byEmail["guru@test.com"].Role)
	assert.Equal(t, 3, accounts.signups)
}

func TestSeederReportsPerAccountErrors(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.failEmail = "guru@test.com"
	report := NewSeeder(accounts, accounts, "rahasia123", nil).Run(context.Background())

	assert.Equal(t, []string{StatusCreated, StatusError, StatusCreated}, statuses(report))
	assert.Equal(t, "connection reset", report.Users[1].Error)
	assert.Equal(t, "rahasia123", report.Credentials.Password)
}

func TestHandler(t *testing.T) {
	accounts := newFakeAccounts()
	seeder := NewSeeder(accounts, accounts, "", nil)

	r := chi.NewRouter()
	NewHandler(seeder, false).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/seed", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Zero(t, accounts.signups)

	r = chi.NewRouter()
	NewHandler(seeder, true).MountRoutes(r)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/seed", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, "Seed completed", report.Message)
	require.Len(t, report.Users, 3)
	assert.Equal(t, "admin@test.com", report.Users[0].Email)
}
