package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/guard"
	"github.com/sekolah/dashboard/internal/shared"
)

// Resolver turns the request session into a guard identity by reading the
// bound user. Deleted and banned users resolve to no identity.
type Resolver struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, logger: logger, now: time.Now}
}

// Resolve implements guard.Resolver.
func (res *Resolver) Resolve(r *http.Request) (*guard.Identity, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		return nil, nil
	}
	user, err := res.repo.FindByID(r.Context(), sess.User())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if user.BanActive(res.now()) {
		return nil, nil
	}
	role := user.Role
	if role != "" && !role.Valid() {
		res.logger.Warn("unknown stored role", slog.String("user_id", user.ID), slog.String("role", string(role)))
		role = access.DefaultRole
	}
	return &guard.Identity{UserID: user.ID, Email: user.Email, Name: user.Name, Role: role}, nil
}

var _ guard.Resolver = (*Resolver)(nil)
