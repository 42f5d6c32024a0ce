package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	users     map[string]*User
	passwords map[string]string
	sessions  map[string][]Session
}

func newMemoryRepo(users ...User) *memoryRepo {
	repo := &memoryRepo{users: map[string]*User{}, passwords: map[string]string{}, sessions: map[string][]Session{}}
	for i := range users {
		u := users[i]
		repo.users[u.ID] = &u
	}
	return repo
}

func (m *memoryRepo) List(_ context.Context, q ListQuery) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q = q.Normalize()
	var out []User
	for _, u := range m.users {
		if q.Search != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), strings.ToLower(q.Search)) {
			continue
		}
		out = append(out, *u)
	}
	less := func(a, b User) bool {
		switch q.SortBy {
		case SortName:
			return a.Name < b.Name
		case SortEmail:
			return a.Email < b.Email
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if q.SortDesc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memoryRepo) Count(ctx context.Context, search string) (int, error) {
	list, err := m.List(ctx, ListQuery{Search: search, Limit: MaxListLimit})
	return len(list), err
}

func (m *memoryRepo) Get(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) Create(_ context.Context, in NewUser) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == in.Email {
			return nil, shared.ErrEmailTaken
		}
	}
	u := &User{ID: uuid.NewString(), Name: in.Name, Email: in.Email, Role: in.Role, CreatedAt: time.Now()}
	m.users[u.ID] = u
	m.passwords[u.ID] = in.PasswordHash
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) mutate(id string, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memoryRepo) UpdateName(_ context.Context, id, name string) error {
	return m.mutate(id, func(u *User) { u.Name = name })
}

func (m *memoryRepo) UpdateRole(_ context.Context, id string, role access.Role) error {
	return m.mutate(id, func(u *User) { u.Role = role })
}

func (m *memoryRepo) UpdatePassword(_ context.Context, id, hash string) error {
	return m.mutate(id, func(u *User) { m.passwords[id] = hash })
}

func (m *memoryRepo) SetBan(_ context.Context, id, reason string, expires *time.Time) error {
	return m.mutate(id, func(u *User) {
		u.Banned = true
		u.BanReason = reason
		u.BanExpires = expires
	})
}

func (m *memoryRepo) LiftBan(_ context.Context, id string) error {
	return m.mutate(id, func(u *User) {
		u.Banned = false
		u.BanReason = ""
		u.BanExpires = nil
	})
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.users, id)
	delete(m.sessions, id)
	return nil
}

func (m *memoryRepo) ListSessions(_ context.Context, userID string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Session(nil), m.sessions[userID]...), nil
}

func (m *memoryRepo) DeleteSessions(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.sessions[userID]))
	delete(m.sessions, userID)
	return n, nil
}

func (m *memoryRepo) LiftExpiredBans(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.Banned && u.BanExpires != nil && u.BanExpires.Before(now) {
			u.Banned = false
			u.BanReason = ""
			u.BanExpires = nil
			n++
		}
	}
	return n, nil
}

type revokerStub struct {
	mu      sync.Mutex
	revoked []string
}

func (r *revokerStub) RevokeUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, userID)
	return nil
}

type auditStub struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *auditStub) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

var _ RepositoryPort = (*memoryRepo)(nil)
