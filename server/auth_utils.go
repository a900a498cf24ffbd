package server

import (
	"net/http"

	"github.com/jrsteele09/blood-bank-console/apiclient"
	"github.com/jrsteele09/blood-bank-console/guard"
	apperrors "github.com/jrsteele09/blood-bank-console/internal/errors"
	"github.com/jrsteele09/blood-bank-console/internal/flash"
	"github.com/jrsteele09/blood-bank-console/session"
)

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectSessionExpired sends the user to the login page after the session
// was invalidated part way through a request
func (s *Server) redirectSessionExpired(w http.ResponseWriter, r *http.Request, next string) {
	s.flashes.Add(flash.Warning, session.MsgSessionExpired)
	redirectSuccess(w, r, guard.LoginLocation(RouteLogin, next))
}

// handleAPIFailure redirects on a lost session and reports whether it did
func (s *Server) handleAPIFailure(w http.ResponseWriter, r *http.Request, err error, next string) bool {
	switch {
	case apiclient.IsSessionExpired(err):
		s.redirectSessionExpired(w, r, next)
		return true
	case apperrors.Is(err, apperrors.ErrNotAuthenticated):
		// signed out while the request was running
		redirectSuccess(w, r, guard.LoginLocation(RouteLogin, next))
		return true
	}
	return false
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
