package guard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/blood-bank-console/session"
	"github.com/jrsteele09/blood-bank-console/users"
)

const defaultWait = 10 * time.Second

// Source is where the middleware reads the session from
type Source interface {
	Snapshot() session.Snapshot
	Ready() <-chan struct{}
}

// Middleware applies a Guard to page requests
type Middleware struct {
	source  Source
	wait    time.Duration
	loading http.HandlerFunc
}

// MiddlewareOption configures a Middleware
type MiddlewareOption func(*Middleware)

// WithWait bounds how long a request is held while the session is unresolved
func WithWait(d time.Duration) MiddlewareOption {
	return func(m *Middleware) {
		if d > 0 {
			m.wait = d
		}
	}
}

// WithLoadingPage sets the placeholder rendered to guests while the session
// is still unresolved
func WithLoadingPage(h http.HandlerFunc) MiddlewareOption {
	return func(m *Middleware) { m.loading = h }
}

// NewMiddleware creates guard middleware bound to a session source
func NewMiddleware(source Source, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{source: source, wait: defaultWait, loading: defaultLoading}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RequireAuth admits signed-in users with one of roles (any role when empty)
func (m *Middleware) RequireAuth(roles ...users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return m.Protect(RequireAuth(roles...))
}

// GuestOnly admits visitors who are not signed in
func (m *Middleware) GuestOnly() func(http.HandlerFunc) http.HandlerFunc {
	return m.Protect(GuestOnly())
}

// Protect applies g. A request that is still suspended after the wait gets the
// loading page if the decision asks for a placeholder and an empty 503 otherwise.
func (m *Middleware) Protect(g Guard) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			target := r.URL.RequestURI()
			d := g.Decide(m.source.Snapshot(), target)
			if d.Action == Suspend {
				m.awaitReady(r)
				d = g.Decide(m.source.Snapshot(), target)
			}

			switch d.Action {
			case Render:
				next(w, r)
			case Redirect:
				redirect(w, r, d.Location)
			default:
				if d.Placeholder {
					m.loading(w, r)
					return
				}
				unavailable(w)
			}
		}
	}
}

func (m *Middleware) awaitReady(r *http.Request) {
	timer := time.NewTimer(m.wait)
	defer timer.Stop()
	select {
	case <-m.source.Ready():
	case <-timer.C:
		log.Warn().Str("path", r.URL.Path).Dur("wait", m.wait).Msg("guard: session still unresolved")
	case <-r.Context().Done():
	}
}

// unavailable withholds protected content while the session is unresolved
func unavailable(w http.ResponseWriter) {
	w.Header().Set("Retry-After", strconv.Itoa(1))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusServiceUnavailable)
}

func defaultLoading(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Retry-After", strconv.Itoa(1))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!doctype html><html><head><meta http-equiv="refresh" content="1"></head><body><p>Loading...</p></body></html>`))
}

// redirect is HTMX aware: HTMX requests get an HX-Redirect header instead of a 303
func redirect(w http.ResponseWriter, r *http.Request, location string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", location)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
