package server

import (
	"net/http"

	"github.com/jrsteele09/blood-bank-console/internal/flash"
	"github.com/jrsteele09/blood-bank-console/session"
	"github.com/jrsteele09/blood-bank-console/users"
)

// RegisterPageHandler renders the registration form (GET /register)
func (s *Server) RegisterPageHandler() http.HandlerFunc {
	tmpl := mustParsePage("register.html")
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPage("Register")
		data.Roles = users.SelfRegistrableRoles
		render(w, tmpl, http.StatusOK, data)
	}
}

// RegisterSubmissionHandler creates the account and signs in (POST /register)
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	tmpl := mustParsePage("register.html")
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		reg := session.Registration{
			Username:  r.FormValue("username"),
			Email:     r.FormValue("email"),
			FirstName: r.FormValue("first_name"),
			LastName:  r.FormValue("last_name"),
			Password:  r.FormValue("password"),
			Password2: r.FormValue("password2"),
			Role:      r.FormValue("role"),
		}

		res := s.session.Register(r.Context(), reg)
		if !res.Success {
			data := s.newPage("Register")
			data.Error = res.Error
			data.Roles = users.SelfRegistrableRoles
			data.Form = map[string]string{
				"username":   reg.Username,
				"email":      reg.Email,
				"first_name": reg.FirstName,
				"last_name":  reg.LastName,
				"role":       reg.Role,
			}
			render(w, tmpl, http.StatusOK, data)
			return
		}

		s.flashes.Add(flash.Success, "Account created. Welcome, "+res.User.FullName())
		redirectSuccess(w, r, RouteDashboard)
	}
}
