package errors

import (
	"errors"
	"fmt"
)

// Common error types for the login portal
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRequestPending     = errors.New("request already pending")

	// Federated login errors
	ErrFederatedDisabled = errors.New("federated login not configured")
	ErrInvalidState      = errors.New("invalid state parameter")
	ErrMissingIDToken    = errors.New("no id_token in token response")
	ErrInvalidNonce      = errors.New("invalid nonce")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")

	// Storage errors
	ErrNotFound       = errors.New("not found")
	ErrUnknownStorage = errors.New("unknown storage driver")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
