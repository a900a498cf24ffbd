package server

import (
	"html/template"
	"net/http"

	"github.com/jrsteele09/blood-bank-console/apiclient"
	"github.com/jrsteele09/blood-bank-console/internal/flash"
	"github.com/jrsteele09/blood-bank-console/internal/utils"
	"github.com/jrsteele09/blood-bank-console/session"
)

// ProfilePageHandler reloads the identity from the backend and shows it (GET /profile)
func (s *Server) ProfilePageHandler() http.HandlerFunc {
	tmpl := mustParsePage("profile.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPage("Profile")
		u, err := s.session.RefreshCurrentIdentity(r.Context())
		switch {
		case err == nil:
			data.User = u
		case s.handleAPIFailure(w, r, err, RouteProfile):
			return
		default:
			// Keep showing the cached identity
			data.Error = "Could not load the latest profile. Showing saved details."
		}
		render(w, tmpl, http.StatusOK, data)
	}
}

// ProfileUpdateHandler saves profile fields (POST /profile)
func (s *Server) ProfileUpdateHandler() http.HandlerFunc {
	tmpl := mustParsePage("profile.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		upd := apiclient.ProfileUpdate{
			Email:       formField(r, "email"),
			FirstName:   formField(r, "first_name"),
			LastName:    formField(r, "last_name"),
			PhoneNumber: formField(r, "phone_number"),
		}
		res := s.session.UpdateProfile(r.Context(), upd)
		if !res.Success {
			s.profileFailure(w, r, tmpl, res)
			return
		}

		s.flashes.Add(flash.Success, "Profile updated")
		redirectSuccess(w, r, RouteProfile)
	}
}

// ChangePasswordHandler changes the signed-in user's password (POST /profile/password)
func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	tmpl := mustParsePage("profile.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		res := s.session.ChangePassword(r.Context(),
			r.FormValue("old_password"),
			r.FormValue("new_password"),
			r.FormValue("confirm_password"))
		if !res.Success {
			s.profileFailure(w, r, tmpl, res)
			return
		}

		s.flashes.Add(flash.Success, "Password changed")
		redirectSuccess(w, r, RouteProfile)
	}
}

func (s *Server) profileFailure(w http.ResponseWriter, r *http.Request, tmpl *template.Template, res session.Result) {
	if res.Error == session.MsgSessionExpired {
		s.redirectSessionExpired(w, r, RouteProfile)
		return
	}
	data := s.newPage("Profile")
	data.Error = res.Error
	render(w, tmpl, http.StatusOK, data)
}

// formField returns nil for fields missing from the form so they stay unchanged
func formField(r *http.Request, name string) *string {
	if _, ok := r.PostForm[name]; !ok {
		return nil
	}
	return utils.Ptr(r.PostForm.Get(name))
}
