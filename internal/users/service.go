package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/guard"
	"github.com/sekolah/dashboard/internal/shared"
)

// SessionRevoker drops live sessions of a user; satisfied by
// *shared.SessionManager.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID string) error
}

// Service handles user management. Every operation checks the acting
// identity against the permission registry before touching storage.
type Service struct {
	repo     RepositoryPort
	registry *access.Registry
	sessions SessionRevoker
	audit    shared.AuditRecorder
	logger   *slog.Logger
	validate *validator.Validate
	hashCost int
	now      func() time.Time
}

// NewService builds Service instance. sessions and audit may be nil.
func NewService(repo RepositoryPort, registry *access.Registry, sessions SessionRevoker, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if registry == nil {
		registry = access.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		registry: registry,
		sessions: sessions,
		audit:    audit,
		logger:   logger,
		validate: validator.New(),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// WithHashCost overrides the bcrypt cost, mainly for tests.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// Registry exposes the permission registry used for checks.
func (s *Service) Registry() *access.Registry {
	return s.registry
}

// Can reports whether actor may perform action on resource.
func (s *Service) Can(actor *guard.Identity, resource access.Resource, action access.Action) bool {
	if actor == nil {
		return false
	}
	return s.registry.HasPermission(actor.EffectiveRole(), resource, action)
}

// Permits reports whether actor holds every action in req.
func (s *Service) Permits(actor *guard.Identity, req access.Permissions) bool {
	if actor == nil {
		return false
	}
	return s.registry.Allows(actor.EffectiveRole(), req)
}

func (s *Service) authorize(actor *guard.Identity, resource access.Resource, action access.Action) error {
	if !s.Can(actor, resource, action) {
		role := access.Role("")
		if actor != nil {
			role = actor.EffectiveRole()
		}
		return fmt.Errorf("%w: %s may not %s %s", shared.ErrForbidden, role, action, resource)
	}
	return nil
}

func notSelf(actor *guard.Identity, id string) error {
	if actor != nil && actor.UserID == id {
		return shared.ErrSelfAction
	}
	return nil
}

// ListUsers returns a page of users together with the total match count.
func (s *Service) ListUsers(ctx context.Context, actor *guard.Identity, q ListQuery) (Page, error) {
	if err := s.authorize(actor, access.ResourceUser, access.ActionList); err != nil {
		return Page{}, err
	}
	q = q.Normalize()
	var (
		list  []User
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = s.repo.List(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, q.Search)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page{}, fmt.Errorf("users: list: %w", err)
	}
	if list == nil {
		list = []User{}
	}
	return Page{Users: list, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

// GetUser fetches one user.
func (s *Service) GetUser(ctx context.Context, actor *guard.Identity, id string) (*User, error) {
	if err := s.authorize(actor, access.ResourceUser, access.ActionGet); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// UpdateUser renames a user.
func (s *Service) UpdateUser(ctx context.Context, actor *guard.Identity, id, name string) (*User, error) {
	if err := s.authorize(actor, access.ResourceUser, access.ActionUpdate); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := s.validate.Var(name, "required,min=2,max=120"); err != nil {
		return nil, fmt.Errorf("%w: name: %v", shared.ErrValidation, err)
	}
	if err := s.repo.UpdateName(ctx, id, name); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "user.update", id, map[string]any{"name": name})
	return s.repo.Get(ctx, id)
}

// SetRole assigns a declared role to a user.
func (s *Service) SetRole(ctx context.Context, actor *guard.Identity, id string, role access.Role) (*User, error) {
	if err := s.authorize(actor, access.ResourceUser, access.ActionSetRole); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, role)
	}
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "user.set_role", id, map[string]any{"role": string(role)})
	return s.repo.Get(ctx, id)
}

// BanUser bans a user and drops their live sessions.
func (s *Service) BanUser(ctx context.Context, actor *guard.Identity, id string, in BanInput) (*User, error) {
	if err := s.authorize(actor, access.ResourceUser, access.ActionBan); err != nil {
		return nil, err
	}
	if err := notSelf(actor, id); err != nil {
		return nil, err
	}
	if in.ExpiresIn < 0 {
		return nil, fmt.Errorf("%w: negative ban duration", shared.ErrValidation)
	}
	var expires *time.Time
	if in.ExpiresIn > 0 {
		t := s.now().Add(in.ExpiresIn)
		expires = &t
	}
	reason := strings.TrimSpace(in.Reason)
	if err := s.repo.SetBan(ctx, id, reason, expires); err != nil {
		return nil, err
	}
	s.dropSessions(ctx, id)
	meta := map[string]any{"reason": reason}
	if expires != nil {
		meta["expires"] = expires.UTC()
	}
	s.record(ctx, actor, "user.ban", id, meta)
	return s.repo.Get(ctx, id)
}

// UnbanUser lifts a ban.
func (s *Service) UnbanUser(ctx context.Context, actor *guard.Identity, id string) (*User, error) {
	if err := s.authorize(actor, access.ResourceUser, access.ActionBan); err != nil {
		return nil, err
	}
	if err := s.repo.LiftBan(ctx, id); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "user.unban", id, nil)
	return s.repo.Get(ctx, id)
}

// RemoveUser deletes a user account.
func (s *Service) RemoveUser(ctx context.Context, actor *guard.Identity, id string) error {
	if err := s.authorize(actor, access.ResourceUser, access.ActionDelete); err != nil {
		return err
	}
	if err := notSelf(actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.sessions != nil {
		if err := s.sessions.RevokeUser(ctx, id); err != nil {
			s.logger.Warn("revoke sessions of removed user", slog.String("user_id", id), slog.Any("error", err))
		}
	}
	s.record(ctx, actor, "user.delete", id, nil)
	return nil
}

// ListUserSessions returns the recorded sessions of a user.
func (s *Service) ListUserSessions(ctx context.Context, actor *guard.Identity, id string) ([]Session, error) {
	if err := s.authorize(actor, access.ResourceSession, access.ActionList); err != nil {
		return nil, err
	}
	sessions, err := s.repo.ListSessions(ctx, id)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

// RevokeUserSessions drops every session of a user.
func (s *Service) RevokeUserSessions(ctx context.Context, actor *guard.Identity, id string) error {
	if err := s.authorize(actor, access.ResourceSession, access.ActionRevoke); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	s.dropSessions(ctx, id)
	s.record(ctx, actor, "session.revoke", id, nil)
	return nil
}

// CreateUser registers an account on behalf of an admin.
func (s *Service) CreateUser(ctx context.Context, actor *guard.Identity, in CreateInput) (*User, error) {
	if err := s.authorize(actor, access.ResourceUser, access.ActionCreate); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = access.DefaultRole
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, in.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, NewUser{Name: in.Name, Email: in.Email, PasswordHash: string(hash), Role: in.Role})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "user.create", user.ID, map[string]any{"email": user.Email, "role": string(user.Role)})
	return user, nil
}

// SetPassword replaces a user's password and signs them out everywhere.
func (s *Service) SetPassword(ctx context.Context, actor *guard.Identity, id, password string) error {
	if err := s.authorize(actor, access.ResourceUser, access.ActionSetPassword); err != nil {
		return err
	}
	if err := s.validate.Var(password, "required,min=8"); err != nil {
		return fmt.Errorf("%w: password: %v", shared.ErrValidation, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		return err
	}
	s.dropSessions(ctx, id)
	s.record(ctx, actor, "user.set_password", id, nil)
	return nil
}

// LiftExpiredBans clears bans whose expiry passed. It runs from the job
// worker and carries no actor.
func (s *Service) LiftExpiredBans(ctx context.Context) (int64, error) {
	return s.repo.LiftExpiredBans(ctx, s.now())
}

func (s *Service) dropSessions(ctx context.Context, id string) {
	if _, err := s.repo.DeleteSessions(ctx, id); err != nil {
		s.logger.Warn("delete session rows", slog.String("user_id", id), slog.Any("error", err))
	}
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeUser(ctx, id); err != nil {
		s.logger.Warn("revoke live sessions", slog.String("user_id", id), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor *guard.Identity, action, id string, meta map[string]any) {
	s.logger.Info("user management", slog.String("action", action), slog.String("actor_id", actor.UserID), slog.String("user_id", id))
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "user", EntityID: id, Meta: meta}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
