package server

import (
	"net/http"

	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
	"github.com/rs/zerolog/log"
)

// GoogleLoginHandler starts a federated login (GET /auth/google).
func (s *Server) GoogleLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := storeFrom(r)
		if store.IsAuthenticated() {
			redirectSuccess(w, r, RouteHome)
			return
		}

		authURL, _, err := s.serviceFor(store).BeginFederatedLogin(r.Context())
		if apperrors.Is(err, apperrors.ErrFederatedDisabled) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			log.Err(err).Msg("Failed to start Google login")
			data := s.loginPageData()
			data.Error = msgGoogleFailed
			s.renderLogin(w, http.StatusInternalServerError, data)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// OAuthCallbackHandler completes a federated login (GET /callback).
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.FormValue("state")
		code := r.FormValue("code")

		data := s.loginPageData()
		data.Error = msgGoogleFailed

		// The provider reports a cancelled or refused consent here.
		if errorParam := r.FormValue("error"); errorParam != "" {
			log.Warn().
				Str("error", errorParam).
				Str("description", r.FormValue("error_description")).
				Msg("Google authorization failed")
			s.renderLogin(w, http.StatusUnauthorized, data)
			return
		}

		_, err := s.serviceFor(storeFrom(r)).CompleteFederatedLogin(r.Context(), state, code)
		switch {
		case err == nil:
			redirectSuccess(w, r, RouteHome)
		case apperrors.Is(err, apperrors.ErrFederatedDisabled):
			http.NotFound(w, r)
		case apperrors.Is(err, apperrors.ErrRequestPending):
			data.Error = msgRequestPending
			s.renderLogin(w, http.StatusConflict, data)
		case apperrors.Is(err, apperrors.ErrInvalidState):
			s.renderLogin(w, http.StatusBadRequest, data)
		default:
			s.renderLogin(w, http.StatusUnauthorized, data)
		}
	}
}
