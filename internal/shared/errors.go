package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrBanned indicates the account is banned from signing in.
	ErrBanned = errors.New("account banned")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the acting role lacks the permission.
	ErrForbidden = errors.New("forbidden")
	// ErrSelfAction indicates an admin targeted their own account with a
	// destructive action.
	ErrSelfAction = errors.New("action not allowed on own account")
	// ErrSessionStore wraps failures of the session backend.
	ErrSessionStore = errors.New("session store unavailable")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps err to a message suitable for display.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Data tidak ditemukan"
	case errors.Is(err, ErrInvalidCredentials):
		return "Email atau password tidak valid"
	case errors.Is(err, ErrBanned):
		return "Akun kamu telah diblokir"
	case errors.Is(err, ErrEmailTaken):
		return "Email sudah terdaftar"
	case errors.Is(err, ErrForbidden):
		return "Kamu tidak punya akses untuk aksi ini"
	case errors.Is(err, ErrValidation):
		return "Data yang dikirim tidak valid"
	case errors.Is(err, ErrSelfAction):
		return "Aksi ini tidak bisa dilakukan pada akun sendiri"
	case errors.Is(err, ErrSessionStore):
		return "Layanan sesi sedang tidak tersedia"
	default:
		return "Terjadi kesalahan"
	}
}
