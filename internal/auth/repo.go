package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/platform/db"
	"github.com/sekolah/dashboard/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, in NewUser) (*User, error)
	UpdateRole(ctx context.Context, id string, role access.Role) error
	LiftBan(ctx context.Context, id string) error
	CreateSession(ctx context.Context, rec SessionRecord) error
	DeleteSession(ctx context.Context, id string) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, name, email, email_verified, password_hash, role, banned, COALESCE(ban_reason, ''), ban_expires, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var (
		u       User
		role    pgtype.Text
		expires pgtype.Timestamptz
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.EmailVerified, &u.PasswordHash, &role, &u.Banned, &u.BanReason, &expires, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	u.Role = access.Role(role.String)
	if expires.Valid {
		t := expires.Time
		u.BanExpires = &t
	}
	return &u, nil
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
	return scanUser(row)
}

// FindByID fetches a user by ID.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// CreateUser inserts a new account.
func (r *PGRepository) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `INSERT INTO users (id, name, email, email_verified, password_hash, role, banned, created_at, updated_at)
		VALUES ($1, $2, $3, false, $4, $5, false, $6, $6)
		RETURNING `+userColumns,
		uuid.NewString(), in.Name, strings.ToLower(strings.TrimSpace(in.Email)), in.PasswordHash, string(in.Role), now)
	user, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, shared.ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// UpdateRole replaces the role of a user.
func (r *PGRepository) UpdateRole(ctx context.Context, id string, role access.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// LiftBan clears the ban fields of a user.
func (r *PGRepository) LiftBan(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET banned = false, ban_reason = NULL, ban_expires = NULL, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, rec SessionRecord) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO sessions (id, user_id, created_at, expires_at, ip, user_agent) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID,
		rec.UserID,
		pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true},
		pgtype.Timestamptz{Time: rec.ExpiresAt.UTC(), Valid: true},
		pgtype.Text{String: rec.IP, Valid: rec.IP != ""},
		pgtype.Text{String: rec.UserAgent, Valid: rec.UserAgent != ""},
	)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// PurgeExpiredSessions deletes session rows that expired before now.
func (r *PGRepository) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
