// Package guard decides what a page request may see given the current session.
package guard

import (
	"net/url"

	"github.com/jrsteele09/blood-bank-console/session"
	"github.com/jrsteele09/blood-bank-console/users"
)

// Default destinations
const (
	DefaultLoginPath = "/login"
	DefaultHomePath  = "/dashboard"
	NextParam        = "next"
)

// Action is what to do with a guarded request
type Action int

const (
	// Suspend holds the request until the session is resolved
	Suspend Action = iota
	// Render lets the request through
	Render
	// Redirect sends the caller elsewhere
	Redirect
)

func (a Action) String() string {
	switch a {
	case Suspend:
		return "suspend"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	}
	return "invalid"
}

// Decision is the result of evaluating a guard
type Decision struct {
	Action      Action
	Location    string // set for Redirect
	Placeholder bool   // a Suspend that shows a loading page rather than nothing
}

// Guard evaluates a session snapshot for a target path (path plus query)
type Guard interface {
	Decide(snap session.Snapshot, target string) Decision
}

// Authenticated admits only signed-in users, optionally restricted to roles
type Authenticated struct {
	LoginPath string
	HomePath  string
	Roles     []users.RoleType
}

// RequireAuth returns a guard for authenticated-only pages
func RequireAuth(roles ...users.RoleType) Authenticated {
	return Authenticated{LoginPath: DefaultLoginPath, HomePath: DefaultHomePath, Roles: roles}
}

// Decide implements Guard
func (g Authenticated) Decide(snap session.Snapshot, target string) Decision {
	if pending(snap) {
		return Decision{Action: Suspend}
	}
	if !snap.IsAuthenticated() {
		return Decision{Action: Redirect, Location: LoginLocation(g.loginPath(), target)}
	}
	if len(g.Roles) > 0 && !snap.User.HasRole(g.Roles...) {
		return Decision{Action: Redirect, Location: g.homePath()}
	}
	return Decision{Action: Render}
}

func (g Authenticated) loginPath() string {
	if g.LoginPath == "" {
		return DefaultLoginPath
	}
	return g.LoginPath
}

func (g Authenticated) homePath() string {
	if g.HomePath == "" {
		return DefaultHomePath
	}
	return g.HomePath
}

// Guest admits only visitors who are not signed in
type Guest struct {
	HomePath string
}

// GuestOnly returns a guard for pages such as login and register
func GuestOnly() Guest {
	return Guest{HomePath: DefaultHomePath}
}

// Decide implements Guard
func (g Guest) Decide(snap session.Snapshot, _ string) Decision {
	if pending(snap) {
		return Decision{Action: Suspend, Placeholder: true}
	}
	if snap.IsAuthenticated() {
		home := g.HomePath
		if home == "" {
			home = DefaultHomePath
		}
		return Decision{Action: Redirect, Location: home}
	}
	return Decision{Action: Render}
}

func pending(snap session.Snapshot) bool {
	return snap.Loading || snap.State == session.Unknown
}

// LoginLocation builds the login URL that returns to target afterwards
func LoginLocation(loginPath, target string) string {
	if target == "" {
		return loginPath
	}
	return loginPath + "?" + NextParam + "=" + url.QueryEscape(target)
}

// SafeNext validates a post-login destination. Only local absolute paths are
// accepted; anything else yields fallback.
func SafeNext(next, fallback string) string {
	if next == "" {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || next[0] != '/' {
		return fallback
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return fallback
	}
	return next
}
