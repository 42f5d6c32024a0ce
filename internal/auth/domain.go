package auth

import (
	"time"

	"github.com/sekolah/dashboard/internal/access"
)

// User represents an account as seen by the authentication flows.
type User struct {
	ID            string
	Name          string
	Email         string
	EmailVerified bool
	PasswordHash  string
	Role          access.Role
	Banned        bool
	BanReason     string
	BanExpires    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BanActive reports whether the user is banned at now. Bans with a passed
// expiry are no longer active.
func (u *User) BanActive(now time.Time) bool {
	if u == nil || !u.Banned {
		return false
	}
	return u.BanExpires == nil || now.Before(*u.BanExpires)
}

// NewUser carries the fields needed to register an account.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Role         access.Role
}

// SessionRecord is the Postgres row tracking a login session.
type SessionRecord struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	IP        string
	UserAgent string
}
