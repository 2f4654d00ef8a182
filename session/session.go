// Package session owns the client-held authentication state: the access and
// refresh tokens and the authenticated flag derived from them.
//
// A Store persists its Session to a named durable-storage slot on every
// mutation and restores from that slot when opened. Other packages see a Store
// only through the narrow capabilities below.
package session

import (
	"context"

	"github.com/jrsteele09/go-login-portal/internal/utils"
)

// DefaultSlot is the storage slot a single-user client persists to.
const DefaultSlot = "auth-storage"

// Session is the client-held record of authentication tokens.
// IsAuthenticated is always derived from AccessToken and never set on its own.
type Session struct {
	AccessToken     *string
	RefreshToken    *string
	IsAuthenticated bool
}

// Tokens is the input to SetAuth. An empty string means the token is absent.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

func newSession(t Tokens) Session {
	access := utils.NonEmpty(t.AccessToken)
	return Session{
		AccessToken:     access,
		RefreshToken:    utils.NonEmpty(t.RefreshToken),
		IsAuthenticated: access != nil,
	}
}

// clone copies the token pointers so callers cannot mutate store state.
func (s Session) clone() Session {
	out := Session{IsAuthenticated: s.IsAuthenticated}
	if s.AccessToken != nil {
		out.AccessToken = utils.Ptr(*s.AccessToken)
	}
	if s.RefreshToken != nil {
		out.RefreshToken = utils.Ptr(*s.RefreshToken)
	}
	return out
}

func (s Session) cleared() bool {
	return s.AccessToken == nil && s.RefreshToken == nil
}

// Status is the route-gating view of a Session.
type Status int

const (
	// StatusUnknown means the store has not finished restoring from storage.
	StatusUnknown Status = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

func statusOf(s Session) Status {
	if s.IsAuthenticated {
		return StatusAuthenticated
	}
	return StatusUnauthenticated
}

// TokenSource is the read-only view the API client uses to attach a bearer token.
type TokenSource interface {
	AccessToken() (string, bool)
}

// Invalidator is the capability to force a session to end, used on unauthorized responses.
type Invalidator interface {
	Logout(ctx context.Context)
}

// AuthState is the read-only view the route guard consumes.
type AuthState interface {
	Status() Status
	IsAuthenticated() bool
}

// Writer is the capability authentication operations use to update the session.
type Writer interface {
	SetAuth(ctx context.Context, t Tokens)
	Logout(ctx context.Context)
}
