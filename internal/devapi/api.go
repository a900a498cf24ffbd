// Package devapi is an in-memory stand-in for the blood-bank REST backend.
// It speaks the same auth contract as the real service and exposes hooks that
// let tests force expired credentials and failed refreshes.
package devapi

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/blood-bank-console/users"
)

// BasePath is where the API is mounted, matching the real backend's /api prefix
const BasePath = "/api"

const (
	defaultSecret     = "devapi-insecure-secret"
	defaultAccessTTL  = 5 * time.Minute
	defaultRefreshTTL = 24 * time.Hour
)

// API is the fake backend
type API struct {
	signer     *hmacSigner
	revoked    *revocationList
	users      *userTable
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowFunc    func() time.Time
	router     chi.Router

	gen   atomic.Int64
	floor atomic.Int64

	hooksMu           sync.Mutex
	forceUnauthorized int
	failRefresh       bool
	refreshDelay      time.Duration
	profileDelay      time.Duration
	calls             map[string]int
}

// Option configures the API
type Option func(*API)

// WithSecret sets the HS256 signing secret
func WithSecret(secret string) Option {
	return func(a *API) { a.signer = newHMACSigner(secret) }
}

// WithTokenExpiry sets access and refresh token lifetimes
func WithTokenExpiry(access, refresh time.Duration) Option {
	return func(a *API) {
		a.accessTTL = access
		a.refreshTTL = refresh
	}
}

// WithNowFunc replaces the clock
func WithNowFunc(now func() time.Time) Option {
	return func(a *API) { a.nowFunc = now }
}

// New creates the fake backend with an empty user table
func New(opts ...Option) *API {
	a := &API{
		signer:     newHMACSigner(defaultSecret),
		revoked:    newRevocationList(),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		nowFunc:    time.Now,
		calls:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.users = newUserTable(a.now)
	a.router = a.routes()
	return a
}

// ServeHTTP implements http.Handler
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *API) routes() chi.Router {
	root := chi.NewRouter()
	root.Use(
		middleware.Recoverer,
		middleware.RequestID,
		a.countCalls,
	)

	root.Route(BasePath, func(r chi.Router) {
		r.Post("/auth/register/", a.register)
		r.Post("/auth/login/", a.login)
		r.Post("/auth/refresh/", a.refresh)
		r.Post("/auth/login/refresh/", a.refresh)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Post("/auth/logout/", a.logout)
			r.Post("/auth/password/change/", a.changePassword)
			r.Get("/auth/user/profile/", a.profile)
			r.Patch("/auth/user/profile/", a.updateProfile)
			r.Get("/users/", a.listUsers)
		})
	})
	return root
}

// SeedUser creates an account directly, bypassing registration rules.
// It is the only way to create an ADMIN.
func (a *API) SeedUser(u users.User, password string) (*users.User, error) {
	return a.users.Create(u, password)
}

// ExpireAccessTokens makes every access token issued so far invalid. Refresh
// tokens keep working.
func (a *API) ExpireAccessTokens() {
	a.floor.Store(a.gen.Add(1))
	log.Debug().Msg("devapi: access tokens expired")
}

// ForceUnauthorized makes the next n authenticated requests fail with 401
func (a *API) ForceUnauthorized(n int) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	a.forceUnauthorized = n
}

// FailRefresh makes every refresh request fail with 401 while fail is true
func (a *API) FailRefresh(fail bool) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	a.failRefresh = fail
}

// SetRefreshDelay holds refresh responses for d
func (a *API) SetRefreshDelay(d time.Duration) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	a.refreshDelay = d
}

// SetProfileDelay holds profile reads for d
func (a *API) SetProfileDelay(d time.Duration) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	a.profileDelay = d
}

// Calls returns how many requests reached path (relative to BasePath)
func (a *API) Calls(path string) int {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	return a.calls[BasePath+path]
}

// IsRefreshRevoked reports whether refresh has been blacklisted
func (a *API) IsRefreshRevoked(refresh string) bool {
	claims, err := a.signer.Parse(refresh)
	if err != nil {
		return false
	}
	jti, _ := claims["jti"].(string)
	return a.revoked.IsRevoked(jti)
}

func (a *API) now() time.Time {
	return a.nowFunc()
}

func (a *API) generation() int64 {
	return a.gen.Load()
}

func (a *API) accessFloor() int64 {
	return a.floor.Load()
}

func (a *API) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.hooksMu.Lock()
		a.calls[r.URL.Path]++
		a.hooksMu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (a *API) takeForcedUnauthorized() bool {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	if a.forceUnauthorized > 0 {
		a.forceUnauthorized--
		return true
	}
	return false
}

func (a *API) profileHook() time.Duration {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	return a.profileDelay
}

func (a *API) refreshHooks() (fail bool, delay time.Duration) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	return a.failRefresh, a.refreshDelay
}
