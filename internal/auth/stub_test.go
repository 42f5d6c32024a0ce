package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/auth"
	"github.com/sekolah/dashboard/internal/shared"
)

type stubRepo struct {
	mu       sync.Mutex
	users    map[string]*auth.User
	sessions map[string]auth.SessionRecord
	lifted   []string
	findErr  error
}

func newStubRepo(users ...*auth.User) *stubRepo {
	repo := &stubRepo{users: make(map[string]*auth.User), sessions: make(map[string]auth.SessionRecord)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *stubRepo) CreateUser(_ context.Context, in auth.NewUser) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, in.Email) {
			return nil, shared.ErrEmailTaken
		}
	}
	now := time.Now()
	u := &auth.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        strings.ToLower(in.Email),
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *stubRepo) UpdateRole(_ context.Context, id string, role access.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Role = role
	return nil
}

func (s *stubRepo) LiftBan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Banned = false
		u.BanReason = ""
		u.BanExpires = nil
	}
	s.lifted = append(s.lifted, id)
	return nil
}

func (s *stubRepo) CreateSession(_ context.Context, rec auth.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.ID] = rec
	return nil
}

func (s *stubRepo) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *stubRepo) PurgeExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.sessions {
		if rec.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

var _ auth.Repository = (*stubRepo)(nil)
