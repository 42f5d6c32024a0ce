// Package guard decides, per request, whether a protected dashboard path may be
// served to the current session or must be redirected elsewhere.
package guard

import (
	"strings"

	"github.com/sekolah/dashboard/internal/access"
)

// DefaultLoginPath receives every unauthenticated request.
const DefaultLoginPath = "/login"

// Reason explains why a request was redirected.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNoSession        Reason = "no_session"
	ReasonInsufficientRole Reason = "insufficient_role"
)

// Identity is the part of a session the guard needs.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   access.Role
}

// EffectiveRole returns the identity role, defaulting to user when unset.
func (i *Identity) EffectiveRole() access.Role {
	if i == nil || i.Role == "" {
		return access.DefaultRole
	}
	return i.Role
}

// Decision is the outcome for a single request.
type Decision struct {
	Redirect bool
	Target   string
	Reason   Reason
}

// Forward reports whether the request should reach the handler unchanged.
func (d Decision) Forward() bool {
	return !d.Redirect
}

// Rule binds a path prefix to the only role allowed under it.
type Rule struct {
	Prefix string
	Role   access.Role
	// FixedTarget, when set, replaces the role dashboard as redirect target.
	FixedTarget string
}

func (r Rule) target(role access.Role) string {
	if r.FixedTarget != "" {
		return r.FixedTarget
	}
	return DashboardPath(role)
}

// Policy is the static route table. Rules are evaluated in order.
type Policy struct {
	LoginPath string
	Rules     []Rule
}

// DefaultPolicy returns the admin, guru and user route table.
func DefaultPolicy() Policy {
	return Policy{
		LoginPath: DefaultLoginPath,
		Rules: []Rule{
			{Prefix: "/admin", Role: access.RoleAdmin},
			{Prefix: "/guru", Role: access.RoleGuru},
			// Fixed target: non-user roles are sent to /user/dashboard, which
			// is itself guarded. Kept as found pending product confirmation.
			{Prefix: "/user", Role: access.RoleUser, FixedTarget: DashboardPath(access.RoleUser)},
		},
	}
}

// DashboardPath returns the landing page of role.
func DashboardPath(role access.Role) string {
	return "/" + string(role) + "/dashboard"
}

// Patterns returns chi route patterns covering the guarded prefixes.
func (p Policy) Patterns() []string {
	out := make([]string, 0, len(p.Rules)*2)
	for _, rule := range p.Rules {
		out = append(out, rule.Prefix, rule.Prefix+"/*")
	}
	return out
}

// Matches reports whether path falls under a guarded prefix: the prefix itself
// or any path below it. Other paths bypass the guard.
func (p Policy) Matches(path string) bool {
	for _, rule := range p.Rules {
		if path == rule.Prefix || strings.HasPrefix(path, rule.Prefix+"/") {
			return true
		}
	}
	return false
}

// Decide computes the decision for identity requesting path. A nil identity
// is unauthenticated.
func (p Policy) Decide(id *Identity, path string) Decision {
	if id == nil {
		login := p.LoginPath
		if login == "" {
			login = DefaultLoginPath
		}
		return Decision{Redirect: true, Target: login, Reason: ReasonNoSession}
	}
	role := id.EffectiveRole()
	for _, rule := range p.Rules {
		if strings.HasPrefix(path, rule.Prefix) && role != rule.Role {
			return Decision{Redirect: true, Target: rule.target(role), Reason: ReasonInsufficientRole}
		}
	}
	return Decision{}
}
