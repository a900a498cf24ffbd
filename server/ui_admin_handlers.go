package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/blood-bank-console/users"
)

// AdminUsersHandler lists every account on the platform (GET /admin/users)
func (s *Server) AdminUsersHandler() http.HandlerFunc {
	tmpl := mustParsePage("admin_users.html")

	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.client.ListUsers(r.Context())
		if err != nil {
			if s.handleAPIFailure(w, r, err, RouteAdminUsers) {
				return
			}
			log.Err(err).Msg("Failed to list users")
			data := s.newPage("Users")
			data.Error = "Could not load users"
			render(w, tmpl, http.StatusBadGateway, data)
			return
		}

		data := s.newPage("Users")
		data.Users = make([]*users.User, 0, len(list))
		for i := range list {
			data.Users = append(data.Users, &list[i])
		}
		render(w, tmpl, http.StatusOK, data)
	}
}
