package server

import (
	"net/http"

	"github.com/jrsteele09/go-login-portal/auth"
	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	msgRequestPending = "A sign-in request is already in progress."
	msgGoogleFailed   = "Google sign-in failed. Please try again."
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName       string
	Email         string // Preserve email on error
	Remember      bool
	FieldErrors   auth.ValidationErrors
	Error         string
	GoogleEnabled bool
	Pending       bool

	ForgotPasswordURL string
	SignupURL         string
	GoogleLoginURL    string
}

func (s *Server) loginPageData() LoginPageData {
	return LoginPageData{
		AppName:           s.config.GetAppName(),
		GoogleEnabled:     s.federated != nil,
		ForgotPasswordURL: RouteForgotPassword,
		SignupURL:         RouteSignup,
		GoogleLoginURL:    RouteGoogleLogin,
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, data LoginPageData) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := s.loginTmpl.Execute(w, data); err != nil {
		log.Err(err).Msg("Failed to render login template")
	}
}

// LoginPageUIHandler displays the login page (GET /login)
func (s *Server) LoginPageUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.loginPageData()
		data.Pending = storeFrom(r).Pending()
		s.renderLogin(w, http.StatusOK, data)
	}
}

// LoginSubmissionHandler processes the login form submission (POST /login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		creds := auth.Credentials{
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
		}
		data := s.loginPageData()
		data.Email = creds.Email
		data.Remember = r.PostFormValue("remember") != ""

		err := s.serviceFor(storeFrom(r)).Login(r.Context(), creds)
		if err == nil {
			redirectSuccess(w, r, RouteHome)
			return
		}

		var fieldErrs auth.ValidationErrors
		var loginErr *auth.LoginError
		switch {
		case apperrors.As(err, &fieldErrs):
			data.FieldErrors = fieldErrs
			s.renderLogin(w, http.StatusUnprocessableEntity, data)
		case apperrors.As(err, &loginErr):
			data.Error = loginErr.Message
			s.renderLogin(w, http.StatusUnauthorized, data)
		case apperrors.Is(err, apperrors.ErrRequestPending):
			data.Error = msgRequestPending
			data.Pending = true
			s.renderLogin(w, http.StatusConflict, data)
		default:
			log.Err(err).Msg("Unexpected login error")
			data.Error = auth.MsgLoginFailed
			s.renderLogin(w, http.StatusInternalServerError, data)
		}
	}
}

// LogoutHandler ends the session (POST /logout). The local session is cleared
// even when the auth API cannot be reached.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serviceFor(storeFrom(r)).Logout(r.Context())
		redirectSuccess(w, r, RouteLogin)
	}
}
