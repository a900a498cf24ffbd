package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrsteele09/blood-bank-console/users"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex+"{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// GUEST
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare(s.guards.GuestOnly())...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare(s.guards.GuestOnly())...))
	s.RegisterRouteHandler("GET "+RouteRegister, ChainMiddleware(s.RegisterPageHandler(), s.HTMLMiddleWare(s.guards.GuestOnly())...))
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.RegisterSubmissionHandler(), s.HTMLMiddleWare(s.guards.GuestOnly())...))

	// LOGOUT works whatever the session state
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// AUTHENTICATED
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.HTMLMiddleWare(s.guards.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteProfile, ChainMiddleware(s.ProfilePageHandler(), s.HTMLMiddleWare(s.guards.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteProfile, ChainMiddleware(s.ProfileUpdateHandler(), s.HTMLMiddleWare(s.guards.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteProfilePassword, ChainMiddleware(s.ChangePasswordHandler(), s.HTMLMiddleWare(s.guards.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteAdminUsers, ChainMiddleware(s.AdminUsersHandler(), s.HTMLMiddleWare(s.guards.RequireAuth(users.RoleAdmin))...))

	s.RegisterRouteHandler("POST "+RouteFlashDismiss, ChainMiddleware(s.FlashDismissHandler(), s.HTMLMiddleWare()...))

	// Status
	s.RegisterRouteFunc("GET "+RouteSession, s.SessionStatusHandler())
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.CacheMiddleware))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := r.PathValue("file")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			logError("GET", filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}
