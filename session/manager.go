package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/blood-bank-console/apiclient"
	apperrors "github.com/jrsteele09/blood-bank-console/internal/errors"
	"github.com/jrsteele09/blood-bank-console/internal/utils"
	"github.com/jrsteele09/blood-bank-console/tokenstore"
	"github.com/jrsteele09/blood-bank-console/users"
)

const defaultRevokeTimeout = 5 * time.Second

// API is the part of the backend client the session depends on
type API interface {
	Login(ctx context.Context, username, password string) (*apiclient.LoginResponse, error)
	Register(ctx context.Context, r apiclient.RegisterRequest) error
	Profile(ctx context.Context) (*users.User, error)
	UpdateProfile(ctx context.Context, u apiclient.ProfileUpdate) (*users.User, error)
	ChangePassword(ctx context.Context, r apiclient.ChangePasswordRequest) error
	RevokeRefresh(ctx context.Context, pair tokenstore.Pair) error
	ClearCredentials(ctx context.Context) error
	Subscribe(fn apiclient.InvalidationListener) (unsubscribe func())
}

// Listener observes every session transition
type Listener func(Snapshot)

// Manager owns the console's notion of who is signed in. All reads go through
// Snapshot so callers never observe a half-updated identity.
type Manager struct {
	api   API
	store tokenstore.Store

	lock      sync.RWMutex
	state     State
	user      *users.User
	loading   bool
	lastError string
	// generation changes whenever the signed-in identity is established or
	// dropped; identity reloads started under an older one are discarded
	generation uint64

	ready         chan struct{}
	readyOnce     sync.Once
	rehydrateOnce sync.Once

	listenersLock sync.Mutex
	listeners     map[int]Listener
	nextListener  int

	unsubscribe   func()
	revokeTimeout time.Duration
	background    sync.WaitGroup
}

// Option configures a Manager
type Option func(*Manager)

// WithRevokeTimeout bounds the best-effort server-side logout
func WithRevokeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.revokeTimeout = d
		}
	}
}

// NewManager creates a session in the Unknown state. Call Rehydrate to resolve it.
func NewManager(api API, store tokenstore.Store, opts ...Option) *Manager {
	m := &Manager{
		api:           api,
		store:         store,
		state:         Unknown,
		loading:       true,
		ready:         make(chan struct{}),
		listeners:     make(map[int]Listener),
		revokeTimeout: defaultRevokeTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.unsubscribe = api.Subscribe(m.onInvalidated)
	return m
}

// Close detaches the manager from the client and waits for background logout calls.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.background.Wait()
}

// Ready is closed once rehydration has finished
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Snapshot returns a consistent copy of the session
func (m *Manager) Snapshot() Snapshot {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return Snapshot{
		State:     m.state,
		User:      m.user.Clone(),
		Loading:   m.loading,
		LastError: m.lastError,
	}
}

// Subscribe registers fn for every transition
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.listenersLock.Lock()
	defer m.listenersLock.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.listenersLock.Lock()
		defer m.listenersLock.Unlock()
		delete(m.listeners, id)
	}
}

// Rehydrate resolves the Unknown state from persisted credentials. Only the
// first call does any work; later calls return once the first has finished.
func (m *Manager) Rehydrate(ctx context.Context) {
	m.rehydrateOnce.Do(func() {
		defer m.markReady()

		access, err := m.store.GetAccess(ctx)
		if err != nil {
			log.Err(err).Msg("session: failed to read token store")
		}
		if access == "" {
			m.setAnonymous("")
			return
		}

		u, err := m.api.Profile(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("session: stored credentials rejected")
			m.setAnonymous("")
			return
		}
		m.setAuthenticated(u)
		log.Info().Str("username", u.Username).Msg("session: restored")
	})
	<-m.ready
}

// Login authenticates with a username and password
func (m *Manager) Login(ctx context.Context, c Credentials) Result {
	if err := c.Validate(); err != nil {
		return m.fail(err.Error())
	}

	resp, err := m.api.Login(ctx, strings.TrimSpace(c.Username), c.Password)
	if err != nil {
		log.Warn().Err(err).Str("username", c.Username).Msg("session: login rejected")
		return m.fail(loginMessage(err))
	}

	if err := m.store.SaveAll(ctx, resp.Access, resp.Refresh); err != nil {
		log.Err(err).Msg("session: failed to persist credentials")
		return m.fail(MsgLoginFailed)
	}

	u, err := m.api.Profile(ctx)
	if err != nil {
		log.Err(err).Msg("session: failed to load profile after login")
		if clearErr := m.api.ClearCredentials(ctx); clearErr != nil {
			log.Err(clearErr).Msg("session: failed to clear credentials")
		}
		m.setAnonymous(MsgLoginFailed)
		return Err(MsgLoginFailed)
	}

	m.setAuthenticated(u)
	log.Info().Str("username", u.Username).Str("role", string(u.Role)).Msg("session: signed in")
	return Ok(u.Clone())
}

// Register creates an account and then signs in with it
func (m *Manager) Register(ctx context.Context, r Registration) Result {
	if err := r.Validate(); err != nil {
		return m.fail(err.Error())
	}
	role, _ := users.ParseRole(r.Role)

	err := m.api.Register(ctx, apiclient.RegisterRequest{
		Username:  strings.TrimSpace(r.Username),
		Email:     strings.TrimSpace(r.Email),
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		Password:  r.Password,
		Password2: r.Password2,
		Role:      role,
	})
	if err != nil {
		log.Warn().Err(err).Str("username", r.Username).Msg("session: registration rejected")
		return m.fail(registrationMessage(err))
	}
	log.Info().Str("username", r.Username).Str("role", string(role)).Msg("session: registered")

	return m.Login(ctx, Credentials{Username: r.Username, Password: r.Password})
}

// Logout forgets the credentials immediately and asks the backend to revoke
// the refresh credential in the background.
func (m *Manager) Logout(ctx context.Context) {
	pair, err := tokenstore.Load(ctx, m.store)
	if err != nil {
		log.Err(err).Msg("session: failed to read credentials for revocation")
	}
	if err := m.api.ClearCredentials(ctx); err != nil {
		log.Err(err).Msg("session: failed to clear credentials")
	}
	m.setAnonymous("")
	log.Info().Msg("session: signed out")

	if pair.Refresh == "" {
		return
	}
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.revokeTimeout)
		defer cancel()
		if err := m.api.RevokeRefresh(rctx, pair); err != nil {
			log.Debug().Err(err).Msg("session: server-side logout failed")
		}
	}()
}

// RefreshCurrentIdentity reloads the profile. A failure leaves the session
// as it was. A profile that arrives after the session was signed out or
// replaced is dropped and reported as ErrNotAuthenticated.
func (m *Manager) RefreshCurrentIdentity(ctx context.Context) (*users.User, error) {
	gen := m.currentGeneration()
	u, err := m.api.Profile(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("session: failed to refresh identity")
		return nil, apperrors.Wrapf(err, "Manager.RefreshCurrentIdentity")
	}
	if !m.replaceIdentity(gen, u) {
		return nil, apperrors.Wrapf(apperrors.ErrNotAuthenticated, "Manager.RefreshCurrentIdentity: session changed during reload")
	}
	return u.Clone(), nil
}

// UpdateProfile saves profile changes and replaces the identity with the
// server's copy
func (m *Manager) UpdateProfile(ctx context.Context, upd apiclient.ProfileUpdate) Result {
	if upd.Email != nil && !validEmail(utils.Value(upd.Email)) {
		return Err(MsgInvalidEmail)
	}
	gen := m.currentGeneration()
	u, err := m.api.UpdateProfile(ctx, upd)
	if err != nil {
		log.Warn().Err(err).Msg("session: profile update rejected")
		return Err(messageOr(err, MsgProfileUpdateFailed))
	}
	if !m.replaceIdentity(gen, u) {
		return Err(MsgSessionExpired)
	}
	return Ok(u.Clone())
}

// ChangePassword changes the signed-in user's password
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) Result {
	if err := validatePasswordChange(oldPassword, newPassword, confirm); err != nil {
		return Err(err.Error())
	}
	err := m.api.ChangePassword(ctx, apiclient.ChangePasswordRequest{
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
	if err != nil {
		log.Warn().Err(err).Msg("session: password change rejected")
		return Err(messageOr(err, MsgPasswordChangeFailed))
	}
	return Ok(m.Snapshot().User)
}

// onInvalidated runs when the client gives up on the credentials
func (m *Manager) onInvalidated(cause error) {
	log.Info().Err(cause).Msg("session: credentials invalidated")
	m.setAnonymous(MsgSessionExpired)
}

func (m *Manager) fail(msg string) Result {
	m.lock.Lock()
	m.lastError = msg
	m.lock.Unlock()
	return Err(msg)
}

func (m *Manager) setAuthenticated(u *users.User) {
	m.transition(func() bool {
		m.generation++
		m.state = Authenticated
		m.user = u.Clone()
		m.lastError = ""
		return true
	})
}

func (m *Manager) setAnonymous(lastError string) {
	m.transition(func() bool {
		m.generation++
		m.state = Anonymous
		m.user = nil
		m.lastError = lastError
		return true
	})
}

// replaceIdentity installs a reloaded profile only while the session that
// requested it is still the signed-in one
func (m *Manager) replaceIdentity(gen uint64, u *users.User) bool {
	return m.transition(func() bool {
		if m.generation != gen || m.state != Authenticated {
			log.Debug().Msg("session: discarding identity fetched for a previous session")
			return false
		}
		m.user = u.Clone()
		m.lastError = ""
		return true
	})
}

func (m *Manager) currentGeneration() uint64 {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.generation
}

// transition applies a change under the lock and notifies listeners if
// apply reports that it changed anything
func (m *Manager) transition(apply func() bool) bool {
	m.lock.Lock()
	if !apply() {
		m.lock.Unlock()
		return false
	}
	snap := Snapshot{State: m.state, User: m.user.Clone(), Loading: m.loading, LastError: m.lastError}
	m.lock.Unlock()
	m.notify(snap)
	return true
}

func (m *Manager) markReady() {
	m.readyOnce.Do(func() {
		m.transition(func() bool {
			m.loading = false
			return true
		})
		close(m.ready)
	})
}

func (m *Manager) notify(snap Snapshot) {
	m.listenersLock.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.listenersLock.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
