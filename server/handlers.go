package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/blood-bank-console/users"
)

// SessionStatus is the JSON view of the session served on /session
type SessionStatus struct {
	State           string      `json:"state"`
	Loading         bool        `json:"loading"`
	User            *users.User `json:"user,omitempty"`
	LastError       string      `json:"last_error,omitempty"`
	AccessExpiresAt *time.Time  `json:"access_expires_at,omitempty"`
}

// SessionStatusHandler reports the current session state
func (s *Server) SessionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.session.Snapshot()
		status := SessionStatus{
			State:     snap.State.String(),
			Loading:   snap.Loading,
			User:      snap.User,
			LastError: snap.LastError,
		}
		if snap.IsAuthenticated() {
			if exp := s.accessExpiry(r.Context()); !exp.IsZero() {
				status.AccessExpiresAt = &exp
			}
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// HealthHandler reports liveness together with whether the session has resolved
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := false
		select {
		case <-s.session.Ready():
			ready = true
		default:
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "session_ready": ready})
	}
}

// FlashDismissHandler removes a notification (POST /flash/{id}/dismiss)
func (s *Server) FlashDismissHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !s.flashes.Dismiss(id) {
			log.Debug().Str("id", id).Msg("flash already gone")
		}
		// htmx swaps the toast for the empty body
		w.WriteHeader(http.StatusOK)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to encode response")
	}
}
