// Package seed provisions the fixed test accounts.
package seed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/auth"
	"github.com/sekolah/dashboard/internal/platform/httpx"
	"github.com/sekolah/dashboard/internal/shared"
)

// Result statuses.
const (
	StatusCreated = "created with role"
	StatusUpdated = "role updated"
	StatusError   = "error"
)

// DefaultPassword is shared by every seeded account unless overridden.
const DefaultPassword = "password123"

// Account is one seeded user.
type Account struct {
	Name  string
	Email string
	Role  access.Role
}

// Accounts returns the three test users, one per role.
func Accounts() []Account {
	return []Account{
		{Name: "Admin Test", Email: "admin@test.com", Role: access.RoleAdmin},
		{Name: "Guru Test", Email: "guru@test.com", Role: access.RoleGuru},
		{Name: "User Test", Email: "user@test.com", Role: access.RoleUser},
	}
}

// Store is the account persistence the seeder needs.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
	UpdateRole(ctx context.Context, id string, role access.Role) error
}

// Registrar creates accounts through the regular sign-up path.
type Registrar interface {
	SignUp(ctx context.Context, in auth.SignUpInput) (*auth.User, error)
}

// Result reports what happened to one account.
type Result struct {
	Email  string      `json:"email"`
	Role   access.Role `json:"role"`
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// Credentials tells the caller how to sign in as a seeded user.
type Credentials struct {
	Password string `json:"password"`
	Note     string `json:"note"`
}

// Report is the outcome of a seeding run.
type Report struct {
	Message     string      `json:"message"`
	Users       []Result    `json:"users"`
	Credentials Credentials `json:"credentials"`
}

// Seeder creates the test accounts, or re-applies their roles when they
// already exist.
type Seeder struct {
	store     Store
	registrar Registrar
	password  string
	logger    *slog.Logger
}

// NewSeeder constructs a Seeder. An empty password falls back to
// DefaultPassword.
func NewSeeder(store Store, registrar Registrar, password string, logger *slog.Logger) *Seeder {
	if password == "" {
		password = DefaultPassword
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: store, registrar: registrar, password: password, logger: logger}
}

// Run seeds every account. Failures are reported per account and never
// abort the remaining ones.
func (s *Seeder) Run(ctx context.Context) Report {
	report := Report{
		Message:     "Seed completed",
		Credentials: Credentials{Password: s.password, Note: "Semua test user menggunakan password yang sama"},
	}
	for _, acct := range Accounts() {
		res := Result{Email: acct.Email, Role: acct.Role}
		status, err := s.seedOne(ctx, acct)
		if err != nil {
			s.logger.Warn("seed account", slog.String("email", acct.Email), slog.Any("error", err))
			res.Status = StatusError
			res.Error = err.Error()
		} else {
			res.Status = status
		}
		report.Users = append(report.Users, res)
	}
	return report
}

func (s *Seeder) seedOne(ctx context.Context, acct Account) (string, error) {
	existing, err := s.store.FindByEmail(ctx, acct.Email)
	switch {
	case err == nil:
		if err := s.store.UpdateRole(ctx, existing.ID, acct.Role); err != nil {
			return "", err
		}
		return StatusUpdated, nil
	case errors.Is(err, shared.ErrNotFound):
	default:
		return "", err
	}

	created, err := s.registrar.SignUp(ctx, auth.SignUpInput{Name: acct.Name, Email: acct.Email, Password: s.password})
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateRole(ctx, created.ID, acct.Role); err != nil {
		return "", err
	}
	return StatusCreated, nil
}

// Handler exposes the seeder over HTTP.
type Handler struct {
	seeder  *Seeder
	enabled bool
}

// NewHandler constructs a Handler. A disabled handler answers 404.
func NewHandler(seeder *Seeder, enabled bool) *Handler {
	return &Handler{seeder: seeder, enabled: enabled}
}

// MountRoutes registers GET /api/seed.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/api/seed", h.seed)
}

func (h *Handler) seed(w http.ResponseWriter, r *http.Request) {
	if !h.enabled || h.seeder == nil {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "")
		return
	}
	httpx.JSON(w, http.StatusOK, h.seeder.Run(r.Context()))
}
