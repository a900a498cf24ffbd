package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/blood-bank-console/apiclient"
)

// IndexHandler sends visitors to the dashboard; the guard there decides the rest
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
	}
}

// DashboardHandler renders the landing page for signed-in users
func (s *Server) DashboardHandler() http.HandlerFunc {
	tmpl := mustParsePage("dashboard.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPage("Dashboard")
		data.AccessExpiresAt = s.accessExpiry(r.Context())
		render(w, tmpl, http.StatusOK, data)
	}
}

// LoadingPageHandler is shown to guests while the session is still being restored
func (s *Server) LoadingPageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("loading.html")
	if err != nil {
		panic("Failed to parse loading template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Retry-After", "1")
		if err := tmpl.Execute(w, PageData{AppName: s.config.GetAppName()}); err != nil {
			log.Err(err).Msg("Failed to render loading template")
		}
	}
}

func (s *Server) accessExpiry(ctx context.Context) (exp time.Time) {
	access, err := s.client.Store().GetAccess(ctx)
	if err != nil || access == "" {
		return exp
	}
	exp, _ = apiclient.AccessExpiry(access)
	return exp
}
