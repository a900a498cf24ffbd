package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/blood-bank-console/guard"
	"github.com/jrsteele09/blood-bank-console/internal/flash"
	"github.com/jrsteele09/blood-bank-console/session"
)

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	loginTmpl := mustParsePage("login.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPage("Sign in")
		data.Next = r.URL.Query().Get(guard.NextParam)
		data.Form = map[string]string{"username": r.URL.Query().Get("username")}
		render(w, loginTmpl, http.StatusOK, data)
	}
}

// LoginSubmissionHandler processes the login form submission (POST /login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	loginTmpl := mustParsePage("login.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		creds := session.Credentials{
			Username: r.FormValue("username"),
			Password: r.FormValue("password"),
		}
		next := r.FormValue(guard.NextParam)

		res := s.session.Login(r.Context(), creds)
		if !res.Success {
			data := s.newPage("Sign in")
			data.Error = res.Error
			data.Next = next
			data.Form = map[string]string{"username": creds.Username}
			render(w, loginTmpl, http.StatusOK, data)
			return
		}

		s.flashes.Add(flash.Success, "Welcome back, "+res.User.FullName())
		redirectSuccess(w, r, guard.SafeNext(next, RouteDashboard))
	}
}

// LogoutHandler ends the session and returns to the login page
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wasSignedIn := s.session.Snapshot().IsAuthenticated()
		s.session.Logout(r.Context())
		if wasSignedIn {
			s.flashes.Add(flash.Info, "You have been signed out.")
		}
		log.Debug().Bool("was_signed_in", wasSignedIn).Msg("logout")
		redirectSuccess(w, r, RouteLogin)
	}
}
