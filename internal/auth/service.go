package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	cost int
	now  func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithHashCost overrides the bcrypt cost, mainly for tests.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// HashPassword hashes a plaintext password with bcrypt.
func (s *Service) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}

// Authenticate validates email/password credentials. Banned accounts are
// rejected with ErrBanned; an expired ban is lifted on the way in.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if user.Banned {
		if user.BanActive(s.now()) {
			return nil, shared.ErrBanned
		}
		if err := s.repo.LiftBan(ctx, user.ID); err != nil {
			return nil, err
		}
		user.Banned = false
		user.BanReason = ""
		user.BanExpires = nil
	}
	if !user.Role.Valid() {
		user.Role = access.DefaultRole
	}
	return user, nil
}

// SignUpInput carries the registration form values.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// SignUp registers a new account with the default role.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*User, error) {
	hashed, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, NewUser{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hashed,
		Role:         access.DefaultRole,
	})
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, rec SessionRecord) error {
	return s.repo.CreateSession(ctx, rec)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// PurgeExpiredSessions removes session rows past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpiredSessions(ctx, s.now())
}
