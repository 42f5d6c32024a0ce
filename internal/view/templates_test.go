package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/guard"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderLoginPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, http.StatusOK, "pages/login.html", TemplateData{Title: "Masuk", CSRFToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="csrf_token" value="tok"`)
}

func TestRenderUnknownTemplate(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, http.StatusOK, "pages/missing.html", TemplateData{})
	assert.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRenderDashboardShowsRole(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	data := TemplateData{
		Title:    "Dashboard",
		Identity: &guard.Identity{Name: "Guru Test", Role: access.RoleGuru},
		Data:     map[string]any{"Statement": access.StatementFor(access.RoleGuru)},
	}
	require.NoError(t, engine.Render(rr, http.StatusOK, "pages/dashboard.html", data))
	assert.Contains(t, rr.Body.String(), "Guru Test")
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "Guru", RoleLabel(access.RoleGuru))
	assert.Equal(t, "Admin", RoleLabel(access.RoleAdmin))
	assert.Equal(t, "User", RoleLabel(""))
}
