package auth

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/go-login-portal/apiclient"
)

// MsgLoginFailed is shown when the auth API gives no message of its own.
const MsgLoginFailed = "Login failed. Please try again."

var ErrMissingAccessToken = errors.New("login response has no access token")

// LoginError is a failed login. Message is safe to show to the user.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// newLoginError takes the server's message when there is one.
func newLoginError(err error) *LoginError {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &LoginError{Message: apiErr.Message, Err: err}
	}
	return &LoginError{Message: MsgLoginFailed, Err: err}
}
