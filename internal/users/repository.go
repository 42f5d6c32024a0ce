package users

import (
	"context"
	"errors"
	"fmt"
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

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, q ListQuery) ([]User, error)
	Count(ctx context.Context, search string) (int, error)
	Get(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, in NewUser) (*User, error)
	UpdateName(ctx context.Context, id, name string) error
	UpdateRole(ctx context.Context, id string, role access.Role) error
	UpdatePassword(ctx context.Context, id, hash string) error
	SetBan(ctx context.Context, id, reason string, expires *time.Time) error
	LiftBan(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ListSessions(ctx context.Context, userID string) ([]Session, error)
	DeleteSessions(ctx context.Context, userID string) (int64, error)
	LiftExpiredBans(ctx context.Context, now time.Time) (int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, name, email, email_verified, role, banned, COALESCE(ban_reason, ''), ban_expires, created_at, updated_at`

var sortColumns = map[SortField]string{
	SortCreatedAt: "created_at",
	SortName:      "lower(name)",
	SortEmail:     "lower(email)",
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u       User
		role    pgtype.Text
		expires pgtype.Timestamptz
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.EmailVerified, &role, &u.Banned, &u.BanReason, &expires, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Role = access.Role(role.String)
	if expires.Valid {
		t := expires.Time
		u.BanExpires = &t
	}
	return u, nil
}

func searchClause(search string, args []any) (string, []any) {
	if search == "" {
		return "", args
	}
	args = append(args, "%"+likeEscaper.Replace(strings.ToLower(search))+"%")
	n := len(args)
	return fmt.Sprintf(` WHERE (lower(name) LIKE $%d ESCAPE '\' OR lower(email) LIKE $%d ESCAPE '\')`, n, n), args
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns one page of users.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]User, error) {
	q = q.Normalize()
	where, args := searchClause(q.Search, nil)
	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}
	args = append(args, q.Limit, q.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		userColumns, where, sortColumns[q.SortBy], dir, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Count returns the number of users matching search.
func (r *Repository) Count(ctx context.Context, search string) (int, error) {
	where, args := searchClause(strings.TrimSpace(search), nil)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Get fetches a user by ID.
func (r *Repository) Get(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new account.
func (r *Repository) Create(ctx context.Context, in NewUser) (*User, error) {
	now := time.Now().UTC()
	u, err := scanUser(r.pool.QueryRow(ctx, `INSERT INTO users (id, name, email, email_verified, password_hash, role, banned, created_at, updated_at)
		VALUES ($1, $2, $3, false, $4, $5, false, $6, $6)
		RETURNING `+userColumns,
		uuid.NewString(), in.Name, strings.ToLower(strings.TrimSpace(in.Email)), in.PasswordHash, string(in.Role), now))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, shared.ErrEmailTaken
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateName renames a user.
func (r *Repository) UpdateName(ctx context.Context, id, name string) error {
	return r.execOne(ctx, `UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1`, id, name)
}

// UpdateRole replaces the role of a user.
func (r *Repository) UpdateRole(ctx context.Context, id string, role access.Role) error {
	return r.execOne(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
}

// UpdatePassword replaces the password hash of a user.
func (r *Repository) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.execOne(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

// SetBan bans a user until expires, or indefinitely when expires is nil.
func (r *Repository) SetBan(ctx context.Context, id, reason string, expires *time.Time) error {
	var until pgtype.Timestamptz
	if expires != nil {
		until = pgtype.Timestamptz{Time: expires.UTC(), Valid: true}
	}
	return r.execOne(ctx, `UPDATE users SET banned = true, ban_reason = $2, ban_expires = $3, updated_at = NOW() WHERE id = $1`,
		id, pgtype.Text{String: reason, Valid: reason != ""}, until)
}

// LiftBan clears the ban fields of a user.
func (r *Repository) LiftBan(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE users SET banned = false, ban_reason = NULL, ban_expires = NULL, updated_at = NOW() WHERE id = $1`, id)
}

// Delete removes a user and its session rows in one transaction.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// ListSessions returns the recorded sessions of a user, newest first.
func (r *Repository) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, created_at, expires_at, COALESCE(ip, ''), COALESCE(user_agent, '')
		FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.IP, &s.UserAgent); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSessions removes every session row of a user.
func (r *Repository) DeleteSessions(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// LiftExpiredBans clears bans whose expiry passed before now.
func (r *Repository) LiftExpiredBans(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET banned = false, ban_reason = NULL, ban_expires = NULL, updated_at = NOW()
		WHERE banned = true AND ban_expires IS NOT NULL AND ban_expires < $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ RepositoryPort = (*Repository)(nil)
