package server

// Route path constants
const (
	// Pages
	RouteLogin = "/login"
	RouteHome  = "/"

	// Auth API (public)
	RouteAuthPrefix   = "/api/auth"
	RouteAuthCallback = RouteAuthPrefix + "/callback"
	RouteAuthTelegram = RouteAuthPrefix + "/telegram"
	RouteAuthWebApp   = RouteAuthPrefix + "/webapp"
	RouteAuthRefresh  = RouteAuthPrefix + "/refresh"
	RouteAuthLogout   = RouteAuthPrefix + "/logout"
	RouteAuthDebug    = RouteAuthPrefix + "/debug"
	RouteAuthMe       = RouteAuthPrefix + "/me"

	RouteMetrics = "/metrics"
)
