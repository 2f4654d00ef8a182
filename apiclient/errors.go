package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
)

// APIError is a non-2xx response. Message and Errors come from the
// {message, errors} body the auth API sends on failure.
type APIError struct {
	StatusCode int                 `json:"-"`
	Message    string              `json:"message"`
	Errors     map[string][]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, errors.ErrUnauthorized) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == apperrors.ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return apiErr
	}
	// A non-JSON body leaves Message empty; callers fall back to a generic message.
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Message = ""
		apiErr.Errors = nil
	}
	return apiErr
}
