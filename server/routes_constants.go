package server

import "github.com/jrsteele09/go-login-portal/guard"

// Route path constants
const (
	RouteHome   = guard.HomePath
	RouteLogin  = guard.LoginPath
	RouteLogout = "/logout"

	// Federated login
	RouteGoogleLogin = "/auth/google"
	RouteCallback    = "/callback"

	// Links shown on the login page
	RouteForgotPassword = "/forgot-password"
	RouteSignup         = "./"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
