package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/sekolah/dashboard/internal/access"
)

// User represents an account as seen by the management screens.
type User struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	EmailVerified bool        `json:"emailVerified"`
	Role          access.Role `json:"role"`
	Banned        bool        `json:"banned"`
	BanReason     string      `json:"banReason,omitempty"`
	BanExpires    *time.Time  `json:"banExpires,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Session is a recorded login of a user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IP        string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

// SortField names a sortable users column.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortName      SortField = "name"
	SortEmail     SortField = "email"
)

const (
	// DefaultListLimit is the page size used when none is requested.
	DefaultListLimit = 100
	// MaxListLimit caps the page size.
	MaxListLimit = 100
)

// ListQuery filters and pages the user list.
type ListQuery struct {
	Search   string
	Limit    int
	Offset   int
	SortBy   SortField
	SortDesc bool
}

// DefaultListQuery returns the newest-first listing.
func DefaultListQuery() ListQuery {
	return ListQuery{Limit: DefaultListLimit, SortBy: SortCreatedAt, SortDesc: true}
}

// Normalize clamps the window and falls back to created_at ordering for
// unknown sort fields.
func (q ListQuery) Normalize() ListQuery {
	q.Search = strings.TrimSpace(q.Search)
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	switch q.SortBy {
	case SortCreatedAt, SortName, SortEmail:
	default:
		q.SortBy = SortCreatedAt
		q.SortDesc = true
	}
	return q
}

// Page is one window of the user list.
type Page struct {
	Users  []User `json:"users"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// NewUser carries the fields needed to insert an account.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Role         access.Role
}

// CreateInput is the admin form for creating an account.
type CreateInput struct {
	Name     string      `json:"name" validate:"required,min=2,max=120"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8"`
	Role     access.Role `json:"role"`
}

// BanInput describes a ban. A zero ExpiresIn bans indefinitely.
type BanInput struct {
	Reason    string
	ExpiresIn time.Duration
}

// Command is an action the admin user table can trigger for one row.
type Command string

const (
	CommandDetail         Command = "detail"
	CommandEdit           Command = "edit"
	CommandBan            Command = "ban"
	CommandUnban          Command = "unban"
	CommandDelete         Command = "delete"
	CommandRevokeSessions Command = "revoke-sessions"
)

// Commands lists every row command.
func Commands() []Command {
	return []Command{CommandDetail, CommandEdit, CommandBan, CommandUnban, CommandDelete, CommandRevokeSessions}
}

// ParseCommand validates a command path segment.
func ParseCommand(raw string) (Command, error) {
	cmd := Command(strings.ToLower(strings.TrimSpace(raw)))
	for _, c := range Commands() {
		if c == cmd {
			return cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", raw)
}
