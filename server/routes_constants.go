package server

// Route path constants
// All console routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Guest Routes
	RouteLogin    = "/login"
	RouteRegister = "/register"

	// Authenticated Routes
	RouteLogout          = "/logout"
	RouteDashboard       = "/dashboard"
	RouteProfile         = "/profile"
	RouteProfilePassword = "/profile/password"
	RouteAdminUsers      = "/admin/users"

	// Notification Routes
	RouteFlashDismiss = "/flash/{id}/dismiss"

	// Status Routes
	RouteSession = "/session"
	RouteMetrics = "/metrics"
	RouteHealthz = "/healthz"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/{file}"
)
