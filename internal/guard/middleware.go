package guard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sekolah/dashboard/internal/platform/httpx"
)

// Resolver loads the identity bound to a request. A nil identity with a nil
// error means no session.
type Resolver interface {
	Resolve(r *http.Request) (*Identity, error)
}

// ResolverFunc adapts a function into a Resolver.
type ResolverFunc func(r *http.Request) (*Identity, error)

// Resolve calls f(r).
func (f ResolverFunc) Resolve(r *http.Request) (*Identity, error) {
	return f(r)
}

// Guard enforces a Policy in front of HTTP handlers.
type Guard struct {
	policy   Policy
	resolver Resolver
	logger   *slog.Logger
	metrics  *Metrics
}

// New constructs a Guard. logger and metrics may be nil.
func New(policy Policy, resolver Resolver, logger *slog.Logger, metrics *Metrics) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{policy: policy, resolver: resolver, logger: logger, metrics: metrics}
}

// Policy returns the route table enforced by g.
func (g *Guard) Policy() Policy {
	return g.policy
}

// Evaluate resolves the identity for r and decides. Resolution failures are
// treated as no session.
func (g *Guard) Evaluate(r *http.Request) (*Identity, Decision) {
	var id *Identity
	if g.resolver != nil {
		resolved, err := g.resolver.Resolve(r)
		if err != nil {
			g.logger.Warn("guard resolve session", slog.String("path", r.URL.Path), slog.Any("error", err))
			resolved = nil
		}
		id = resolved
	}
	return id, g.policy.Decide(id, r.URL.Path)
}

// Middleware forwards or redirects requests under the guarded prefixes.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.policy.Matches(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		id, decision := g.Evaluate(r)
		if r.Context().Err() != nil {
			return
		}
		g.metrics.observe(decision)
		if decision.Forward() {
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
			return
		}
		g.logger.Debug("guard redirect",
			slog.String("path", r.URL.Path),
			slog.String("target", decision.Target),
			slog.String("reason", string(decision.Reason)))
		http.Redirect(w, r, decision.Target, http.StatusSeeOther)
	})
}

// RequireIdentity resolves the identity for JSON endpoints outside the
// guarded prefixes. Requests without one get a 401 problem instead of a
// redirect; permission checks are left to the handler.
func (g *Guard) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := g.Evaluate(r)
		if r.Context().Err() != nil {
			return
		}
		if id == nil {
			g.metrics.observe(Decision{Redirect: true, Reason: ReasonNoSession})
			httpx.Problem(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), "login required")
			return
		}
		g.metrics.observe(Decision{})
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

type identityContextKey struct{}

// ContextWithIdentity stores id in ctx.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity forwarded by the guard, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}

// Metrics counts guard decisions.
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics registers the guard collectors on registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_guard_decisions_total",
		Help: "Route guard decisions by outcome and reason.",
	}, []string{"outcome", "reason"})
	if registerer != nil {
		registerer.MustRegister(decisions)
	}
	return &Metrics{decisions: decisions}
}

func (m *Metrics) observe(d Decision) {
	if m == nil {
		return
	}
	outcome := "forward"
	if d.Redirect {
		outcome = "redirect"
	}
	m.decisions.WithLabelValues(outcome, string(d.Reason)).Inc()
}
