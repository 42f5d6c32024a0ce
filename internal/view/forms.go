package view

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sekolah/dashboard/internal/guard"
	"github.com/sekolah/dashboard/internal/shared"
)

// GeneralError is the Errors key for messages not bound to a field.
const GeneralError = "general"

// NewPage assembles TemplateData for r, popping the pending flash message and
// issuing the CSRF token of the request session.
func NewPage(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	sess := shared.SessionFromContext(r.Context())
	var (
		flash *shared.FlashMessage
		token string
	)
	if sess != nil {
		flash = sess.PopFlash()
	}
	if csrf != nil {
		token = csrf.EnsureToken(sess)
	}
	return TemplateData{
		Title:       title,
		CSRFToken:   token,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Identity:    guard.IdentityFromContext(r.Context()),
		Data:        data,
	}
}

// FormErrors maps a validator error onto field name -> message.
func FormErrors(err error) map[string]string {
	errs := make(map[string]string)
	if err == nil {
		return errs
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs[GeneralError] = shared.UserSafeMessage(err)
		return errs
	}
	for _, fieldErr := range fieldErrs {
		errs[fieldErr.Field()] = fieldMessage(fieldErr)
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Wajib diisi"
	case "email":
		return "Format email tidak valid"
	case "min":
		return "Minimal " + fe.Param() + " karakter"
	case "max":
		return "Maksimal " + fe.Param() + " karakter"
	case "eqfield":
		return "Konfirmasi password tidak sama"
	case "oneof":
		return "Pilihan tidak valid"
	default:
		return fe.Error()
	}
}
