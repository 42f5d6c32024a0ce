// Package access declares the roles, resources and actions of the dashboard and
// answers permission queries against them.
package access

import (
	"context"
	"strings"
)

// Role identifies a class of users.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleGuru  Role = "guru"
	RoleUser  Role = "user"
)

// DefaultRole is assigned to new accounts and to sessions without a role.
const DefaultRole = RoleUser

// Roles lists every declared role in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleGuru, RoleUser}
}

// ParseRole converts a stored role name into a Role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", false
	}
	return role, true
}

// Valid reports whether r is a declared role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleGuru, RoleUser:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Resource names a protected entity.
type Resource string

// Action names an operation on a resource.
type Action string

const (
	ResourceUser    Resource = "user"
	ResourceSession Resource = "session"
)

const (
	ActionCreate      Action = "create"
	ActionList        Action = "list"
	ActionSetRole     Action = "set-role"
	ActionBan         Action = "ban"
	ActionImpersonate Action = "impersonate"
	ActionDelete      Action = "delete"
	ActionSetPassword Action = "set-password"
	ActionGet         Action = "get"
	ActionUpdate      Action = "update"
	ActionRevoke      Action = "revoke"
)

// Statement maps each resource to the actions allowed on it. A resource that
// is absent carries no permissions.
type Statement map[Resource][]Action

// Permissions is a request for one or more actions across resources.
type Permissions = Statement

// declared is the closed set of resources and actions.
func declared() Statement {
	return Statement{
		ResourceUser: {
			ActionCreate, ActionList, ActionSetRole, ActionBan, ActionImpersonate,
			ActionDelete, ActionSetPassword, ActionGet, ActionUpdate,
		},
		ResourceSession: {ActionList, ActionRevoke, ActionDelete},
	}
}

// StatementFor returns the statement granted to role. Undeclared roles get an
// empty statement.
func StatementFor(role Role) Statement {
	switch role {
	case RoleAdmin:
		return declared()
	case RoleGuru:
		return Statement{
			ResourceUser:    {ActionList},
			ResourceSession: {ActionList},
		}
	case RoleUser:
		return Statement{
			ResourceUser:    {},
			ResourceSession: {},
		}
	}
	return Statement{}
}

type grantSet map[Resource]map[Action]struct{}

// Registry is the immutable role to permission mapping built at startup.
type Registry struct {
	resources grantSet
	grants    map[Role]grantSet
}

// NewRegistry builds the registry from the declared roles.
func NewRegistry() *Registry {
	reg := &Registry{
		resources: index(declared()),
		grants:    make(map[Role]grantSet, len(Roles())),
	}
	for _, role := range Roles() {
		reg.grants[role] = index(StatementFor(role))
	}
	return reg
}

func index(st Statement) grantSet {
	set := make(grantSet, len(st))
	for res, actions := range st {
		acts := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			acts[a] = struct{}{}
		}
		set[res] = acts
	}
	return set
}

// HasPermission reports whether role may perform action on resource.
// Undeclared roles, resources and actions are denied.
func (r *Registry) HasPermission(role Role, resource Resource, action Action) bool {
	if r == nil {
		return false
	}
	if _, ok := r.resources[resource][action]; !ok {
		return false
	}
	_, ok := r.grants[role][resource][action]
	return ok
}

// Allows reports whether role holds every action listed in req. An empty
// request is denied.
func (r *Registry) Allows(role Role, req Permissions) bool {
	if len(req) == 0 {
		return false
	}
	for res, actions := range req {
		if len(actions) == 0 {
			return false
		}
		for _, a := range actions {
			if !r.HasPermission(role, res, a) {
				return false
			}
		}
	}
	return true
}

// Statement returns a copy of the statement granted to role.
func (r *Registry) Statement(role Role) Statement {
	out := Statement{}
	if r == nil {
		return out
	}
	for _, res := range sortedResources() {
		acts, ok := r.grants[role][res]
		if !ok {
			continue
		}
		list := make([]Action, 0, len(acts))
		for _, a := range declared()[res] {
			if _, granted := acts[a]; granted {
				list = append(list, a)
			}
		}
		out[res] = list
	}
	return out
}

func sortedResources() []Resource {
	return []Resource{ResourceUser, ResourceSession}
}

type registryContextKey struct{}

// ContextWithRegistry stores the registry in ctx.
func ContextWithRegistry(ctx context.Context, reg *Registry) context.Context {
	return context.WithValue(ctx, registryContextKey{}, reg)
}

// RegistryFromContext returns the registry stored in ctx, or nil.
func RegistryFromContext(ctx context.Context) *Registry {
	reg, _ := ctx.Value(registryContextKey{}).(*Registry)
	return reg
}
