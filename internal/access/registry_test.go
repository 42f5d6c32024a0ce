package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminHoldsEveryDeclaredAction(t *testing.T) {
	reg := NewRegistry()
	for res, actions := range declared() {
		for _, a := range actions {
			assert.Truef(t, reg.HasPermission(RoleAdmin, res, a), "admin should hold %s:%s", res, a)
		}
	}
}

func TestGuruIsLimitedToListing(t *testing.T) {
	reg := NewRegistry()
	for res, actions := range declared() {
		for _, a := range actions {
			want := a == ActionList
			assert.Equalf(t, want, reg.HasPermission(RoleGuru, res, a), "guru %s:%s", res, a)
		}
	}
}

func TestUserHasNoDeclaredGrants(t *testing.T) {
	reg := NewRegistry()
	for res, actions := range declared() {
		for _, a := range actions {
			assert.Falsef(t, reg.HasPermission(RoleUser, res, a), "user %s:%s", res, a)
		}
	}
}

func TestAdminExclusiveActions(t *testing.T) {
	reg := NewRegistry()
	for _, role := range []Role{RoleGuru, RoleUser} {
		for _, a := range []Action{ActionBan, ActionDelete, ActionSetRole} {
			assert.False(t, reg.HasPermission(role, ResourceUser, a))
		}
	}
}

func TestHasPermissionExamples(t *testing.T) {
	reg := NewRegistry()
	assert.True(t, reg.HasPermission(RoleAdmin, ResourceUser, ActionBan))
	assert.False(t, reg.HasPermission(RoleGuru, ResourceUser, ActionBan))
	assert.False(t, reg.HasPermission(RoleUser, ResourceUser, ActionList))
	assert.True(t, reg.HasPermission(RoleGuru, ResourceUser, ActionList))
}

func TestUndeclaredQueriesAreDenied(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.HasPermission(RoleAdmin, "kelas", ActionList))
	assert.False(t, reg.HasPermission(RoleAdmin, ResourceUser, "fly"))
	assert.False(t, reg.HasPermission("superuser", ResourceUser, ActionList))
	assert.False(t, reg.HasPermission("", "", ""))

	var nilReg *Registry
	assert.False(t, nilReg.HasPermission(RoleAdmin, ResourceUser, ActionList))
}

func TestAllows(t *testing.T) {
	reg := NewRegistry()
	assert.True(t, reg.Allows(RoleGuru, Permissions{ResourceUser: {ActionList}, ResourceSession: {ActionList}}))
	assert.False(t, reg.Allows(RoleGuru, Permissions{ResourceUser: {ActionList, ActionBan}}))
	assert.True(t, reg.Allows(RoleAdmin, Permissions{ResourceUser: {ActionBan, ActionDelete}}))
	assert.False(t, reg.Allows(RoleAdmin, Permissions{}))
	assert.False(t, reg.Allows(RoleAdmin, Permissions{ResourceUser: {}}))
}

func TestStatementIsACopy(t *testing.T) {
	reg := NewRegistry()
	st := reg.Statement(RoleGuru)
	require.Equal(t, []Action{ActionList}, st[ResourceUser])

	st[ResourceUser] = append(st[ResourceUser], ActionBan)
	assert.False(t, reg.HasPermission(RoleGuru, ResourceUser, ActionBan))

	fresh := StatementFor(RoleAdmin)
	fresh[ResourceUser] = nil
	assert.True(t, reg.HasPermission(RoleAdmin, ResourceUser, ActionBan))
}

func TestStatementForUserKeepsResourceKeys(t *testing.T) {
	st := StatementFor(RoleUser)
	require.Contains(t, st, ResourceUser)
	require.Contains(t, st, ResourceSession)
	assert.Empty(t, st[ResourceUser])
	assert.Empty(t, StatementFor("superuser"))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Guru ")
	require.True(t, ok)
	assert.Equal(t, RoleGuru, role)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
	_, ok = ParseRole("")
	assert.False(t, ok)
}

func TestRegistryContext(t *testing.T) {
	reg := NewRegistry()
	ctx := ContextWithRegistry(context.Background(), reg)
	assert.Same(t, reg, RegistryFromContext(ctx))
	assert.Nil(t, RegistryFromContext(context.Background()))
}
