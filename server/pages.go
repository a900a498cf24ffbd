package server

import (
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/blood-bank-console/internal/flash"
	"github.com/jrsteele09/blood-bank-console/users"
)

const contentTypeHTML = "text/html; charset=utf-8"

// PageData is the model shared by every rendered page
type PageData struct {
	AppName         string
	Title           string
	User            *users.User
	Flashes         []flash.Message
	Error           string
	Next            string
	Form            map[string]string
	Roles           []users.RoleType
	Users           []*users.User
	AccessExpiresAt time.Time
}

// newPage fills the fields every page needs from the current session
func (s *Server) newPage(title string) PageData {
	return PageData{
		AppName: s.config.GetAppName(),
		Title:   title,
		User:    s.session.Snapshot().User,
		Flashes: s.flashes.Pending(),
	}
}

// mustParsePage panics at start-up when a page template is broken
func mustParsePage(name string) *template.Template {
	tmpl, err := ParsePage(name)
	if err != nil {
		panic("Failed to parse " + name + " template: " + err.Error())
	}
	return tmpl
}

func render(w http.ResponseWriter, tmpl *template.Template, status int, data PageData) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		log.Err(err).Str("page", data.Title).Msg("Failed to render template")
	}
}
