package auth

import (
	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
)

// User is the identity shown on the home view. It is never used for gating.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DisplayName prefers the name claim and falls back to the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type userClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwtlib.RegisteredClaims
}

// UserFromToken reads sub, email and name from a JWT without verifying it.
// The result is for display only.
func UserFromToken(raw string) (*User, error) {
	var claims userClaims
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[auth UserFromToken] %v", err)
	}
	return &User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}
