package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-login-portal/internal/metrics"
)

func (s *Server) initRoutes() {
	// Guarded pages
	s.RegisterRouteHandler("GET "+RouteHome+"{$}", ChainMiddleware(s.HomeHandler(), s.HTMLMiddleWare(s.SlotMiddleware, s.GuardMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageUIHandler(), s.HTMLMiddleWare(s.SlotMiddleware, s.GuardMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare(s.SlotMiddleware, s.GuardMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare(s.SlotMiddleware)...))

	// Federated login
	s.RegisterRouteHandler("GET "+RouteGoogleLogin, ChainMiddleware(s.GoogleLoginHandler(), s.HTMLMiddleWare(s.SlotMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare(s.SlotMiddleware)...))

	// Operations
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())

	// Anything else lands on the login page
	s.RegisterRouteHandler("/", ChainMiddleware(s.NotFoundRedirectHandler(), s.HTMLMiddleWare()...))
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (s *Server) NotFoundRedirectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteLogin, http.StatusFound)
	}
}
