// Package auth implements the login, federated login and logout operations
// over the remote auth API and the session store.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-login-portal/apiclient"
	"github.com/jrsteele09/go-login-portal/auth/flowrepo"
	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
	"github.com/jrsteele09/go-login-portal/internal/metrics"
	"github.com/jrsteele09/go-login-portal/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Remote API endpoints.
const (
	LoginEndpoint  = "/auth/login"
	LogoutEndpoint = "/auth/logout"
)

const (
	methodPassword = "password"
	methodGoogle   = "google"
)

// SessionStore is what the operations need from a session.Store: its writer,
// its token and its pending-request token.
type SessionStore interface {
	session.Writer
	session.TokenSource
	Slot() string
	Acquire() (string, error)
	Release(token string)
}

var _ SessionStore = (*session.Store)(nil)

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service runs authentication operations for one session store.
type Service struct {
	api       *apiclient.Client
	store     SessionStore
	federated *FederatedProvider
	flows     flowrepo.Repo
	nowTime   func() time.Time
}

type ServiceOption func(*Service)

// WithFederated enables BeginFederatedLogin and CompleteFederatedLogin.
func WithFederated(p *FederatedProvider, flows flowrepo.Repo) ServiceOption {
	return func(s *Service) {
		s.federated = p
		s.flows = flows
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = now
	}
}

// NewService binds the operations to store. api should attach store's token,
// so a 401 anywhere ends this session.
func NewService(api *apiclient.Client, store SessionStore, opts ...ServiceOption) *Service {
	s := &Service{api: api, store: store, nowTime: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FederatedEnabled reports whether a federated provider is configured.
func (s *Service) FederatedEnabled() bool {
	return s.federated != nil && s.flows != nil
}

// Login validates creds, posts them to the auth API and stores the returned tokens.
// The email is submitted trimmed of surrounding whitespace.
// It returns ValidationErrors without sending anything when creds are invalid,
// and *LoginError when the API rejects them. The session is untouched on failure.
func (s *Service) Login(ctx context.Context, creds Credentials) error {
	creds.Email = strings.TrimSpace(creds.Email)
	if errs := ValidateCredentials(creds); errs != nil {
		return errs
	}

	pending, err := s.store.Acquire()
	if err != nil {
		return err
	}
	defer s.store.Release(pending)

	var resp loginResponse
	if err := s.api.PostJSON(ctx, LoginEndpoint, creds, &resp); err != nil {
		metrics.LoginAttempts.WithLabelValues(methodPassword, "failure").Inc()
		log.Warn().Err(err).Str("slot", s.store.Slot()).Msg("Login failed")
		return newLoginError(err)
	}
	if resp.AccessToken == "" {
		metrics.LoginAttempts.WithLabelValues(methodPassword, "failure").Inc()
		log.Warn().Str("slot", s.store.Slot()).Msg("Login response had no access token")
		return &LoginError{Message: MsgLoginFailed, Err: ErrMissingAccessToken}
	}

	s.store.SetAuth(ctx, session.Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})
	metrics.LoginAttempts.WithLabelValues(methodPassword, "success").Inc()
	log.Info().Str("slot", s.store.Slot()).Msg("Login succeeded")
	return nil
}

// BeginFederatedLogin starts an authorization-code flow with PKCE and returns
// the provider URL to redirect to along with its state.
func (s *Service) BeginFederatedLogin(ctx context.Context) (authURL, state string, err error) {
	if !s.FederatedEnabled() {
		return "", "", apperrors.ErrFederatedDisabled
	}

	state = uuid.NewString()
	flow := flowrepo.FlowState{
		Slot:         s.store.Slot(),
		CodeVerifier: oauth2.GenerateVerifier(),
		Nonce:        uuid.NewString(),
		CreatedAt:    s.nowTime(),
	}
	if err := s.flows.Put(ctx, state, flow); err != nil {
		return "", "", apperrors.Wrapf(err, "[auth BeginFederatedLogin] remember flow")
	}

	authURL = s.federated.OAuth2Config.AuthCodeURL(state,
		oidc.Nonce(flow.Nonce),
		oauth2.S256ChallengeOption(flow.CodeVerifier),
	)
	return authURL, state, nil
}

// CompleteFederatedLogin exchanges code for tokens, verifies the ID token and
// stores it as the access token. Any failure leaves the session untouched.
func (s *Service) CompleteFederatedLogin(ctx context.Context, state, code string) (*User, error) {
	if !s.FederatedEnabled() {
		return nil, apperrors.ErrFederatedDisabled
	}

	pending, err := s.store.Acquire()
	if err != nil {
		return nil, err
	}
	defer s.store.Release(pending)

	user, tokens, err := s.exchange(ctx, state, code)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(methodGoogle, "failure").Inc()
		log.Err(err).Str("slot", s.store.Slot()).Msg("Federated login failed")
		return nil, err
	}

	s.store.SetAuth(ctx, tokens)
	metrics.LoginAttempts.WithLabelValues(methodGoogle, "success").Inc()
	log.Info().Str("slot", s.store.Slot()).Msg("Federated login succeeded")
	return user, nil
}

func (s *Service) exchange(ctx context.Context, state, code string) (*User, session.Tokens, error) {
	flow, err := s.flows.Take(ctx, state)
	if err != nil {
		return nil, session.Tokens{}, err
	}
	if flow.Slot != s.store.Slot() {
		return nil, session.Tokens{}, apperrors.Wrapf(apperrors.ErrInvalidState, "[auth exchange] state issued to another session")
	}
	if code == "" {
		return nil, session.Tokens{}, apperrors.Wrapf(apperrors.ErrInvalidState, "[auth exchange] missing code")
	}

	oauth2Token, err := s.federated.OAuth2Config.Exchange(ctx, code, oauth2.VerifierOption(flow.CodeVerifier))
	if err != nil {
		return nil, session.Tokens{}, apperrors.Wrapf(err, "[auth exchange] token exchange")
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, session.Tokens{}, apperrors.ErrMissingIDToken
	}

	idToken, err := s.federated.Verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, session.Tokens{}, apperrors.Wrapf(apperrors.ErrInvalidToken, "[auth exchange] verify id token: %v", err)
	}

	var claims struct {
		Nonce string `json:"nonce"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, session.Tokens{}, apperrors.Wrapf(apperrors.ErrInvalidToken, "[auth exchange] claims: %v", err)
	}
	if claims.Nonce != flow.Nonce {
		return nil, session.Tokens{}, apperrors.ErrInvalidNonce
	}

	user := &User{ID: idToken.Subject, Email: claims.Email, Name: claims.Name}
	return user, session.Tokens{AccessToken: rawIDToken, RefreshToken: oauth2Token.RefreshToken}, nil
}

// Logout tells the auth API the session is ending, then clears it locally
// whatever the API answered. While another operation holds the session the
// API call is skipped, but the local session is cleared all the same.
// Logging out twice is harmless.
func (s *Service) Logout(ctx context.Context) {
	serverResult := "skipped"
	if pending, err := s.store.Acquire(); err != nil {
		log.Warn().Err(err).Str("slot", s.store.Slot()).Msg("Operation in flight, clearing local session without server logout")
	} else {
		defer s.store.Release(pending)
		if _, ok := s.store.AccessToken(); ok {
			serverResult = "ok"
			if err := s.api.PostJSON(ctx, LogoutEndpoint, nil, nil); err != nil {
				serverResult = "failed"
				log.Warn().Err(err).Str("slot", s.store.Slot()).Msg("Server logout failed, clearing local session anyway")
			}
		}
	}

	s.store.Logout(ctx)
	metrics.Logouts.WithLabelValues(serverResult).Inc()
	log.Info().Str("slot", s.store.Slot()).Msg("Logged out")
}
