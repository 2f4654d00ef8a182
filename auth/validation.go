package auth

import (
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"

	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
)

const (
	MsgInvalidEmail     = "Invalid email"
	MsgPasswordTooShort = "Password must contain at least 8 characters"

	minPasswordLength = 8
)

// Credentials are the email/password pair submitted at login.
// They are never persisted or logged.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ValidationErrors maps a field name to its message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "invalid credentials: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, errors.ErrInvalidCredentials) match field failures.
func (v ValidationErrors) Is(target error) bool {
	return target == apperrors.ErrInvalidCredentials
}

// ValidateCredentials checks the email format and password length.
// It returns nil when the credentials may be submitted.
func ValidateCredentials(c Credentials) ValidationErrors {
	errs := ValidationErrors{}
	if !validEmail(c.Email) {
		errs["email"] = MsgInvalidEmail
	}
	if utf8.RuneCountInString(c.Password) < minPasswordLength {
		errs["password"] = MsgPasswordTooShort
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validEmail accepts a bare addr-spec with a dotted domain. Display names
// ("Bob <bob@example.com>") are rejected.
func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasSuffix(domain, ".")
}
