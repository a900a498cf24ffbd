// Package apiclient talks to the blood-bank REST backend.
//
// Every request carries the stored access credential as a bearer token. When
// the backend answers 401 the client exchanges the refresh credential for a new
// access credential and resubmits the request once. If that recovery is
// impossible the credentials are cleared and subscribers are told the session
// was invalidated; the client itself never decides where the user goes next.
package apiclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/blood-bank-console/internal/errors"
	"github.com/jrsteele09/blood-bank-console/tokenstore"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-Id"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"

	defaultTimeout = 15 * time.Second
)

// InvalidationListener is told why the session could not be recovered.
// It runs after the token store has been cleared.
type InvalidationListener func(cause error)

// Client issues authenticated requests against the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      tokenstore.Store
	metrics    *Metrics

	defaultsLock sync.RWMutex
	defaults     http.Header

	listenersLock sync.Mutex
	listeners     map[int]InvalidationListener
	nextListener  int

	coalesce  bool
	refreshSF singleflight.Group
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMetrics records request, refresh and invalidation counters.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRefreshCoalescing makes concurrent 401s share a single refresh call.
// Without it every failing request performs its own refresh.
func WithRefreshCoalescing() Option {
	return func(c *Client) { c.coalesce = true }
}

// New creates a client for the API rooted at baseURL (e.g. "http://localhost:8000/api").
func New(baseURL string, store tokenstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		store:      store,
		defaults:   http.Header{},
		listeners:  make(map[int]InvalidationListener),
	}
	c.defaults.Set(headerContentType, contentTypeJSON)
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// Store returns the token store backing the client.
func (c *Client) Store() tokenstore.Store { return c.store }

// Subscribe registers fn for session invalidation events and returns a
// function that removes it again.
func (c *Client) Subscribe(fn InvalidationListener) (unsubscribe func()) {
	c.listenersLock.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.listenersLock.Unlock()

	return func() {
		c.listenersLock.Lock()
		delete(c.listeners, id)
		c.listenersLock.Unlock()
	}
}

// Do sends req with the current access credential. A 401 on a request that
// has not been retried yet triggers one refresh and one resubmission; the
// resubmitted response is returned as is, whatever its status.
//
// Requests with a body must be replayable (req.GetBody set), which
// http.NewRequest arranges for in-memory readers.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	pol := policyFrom(ctx)

	attempt, err := c.prepare(req, pol)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(attempt)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || pol.noRecovery || pol.retried {
		return resp, nil
	}
	discard(resp)

	access, err := c.recoverAccess(ctx)
	if err != nil {
		return nil, err
	}

	retryPol := pol
	retryPol.retried = true
	retry, err := c.replay(req, retryPol, access)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("api: resubmitting request after token refresh")
	return c.send(retry)
}

// prepare clones req and attaches defaults, the bearer credential and a request id.
func (c *Client) prepare(req *http.Request, pol policy) (*http.Request, error) {
	ctx := withPolicy(req.Context(), pol)
	out := req.Clone(ctx)
	if out.Header == nil {
		out.Header = http.Header{}
	}

	c.defaultsLock.RLock()
	for k, vals := range c.defaults {
		if out.Header.Get(k) != "" {
			continue
		}
		if k == headerAuthorization && pol.public {
			continue
		}
		for _, v := range vals {
			out.Header.Add(k, v)
		}
	}
	c.defaultsLock.RUnlock()

	switch {
	case pol.bearer != "":
		setBearer(out, pol.bearer)
	case !pol.public:
		access, err := c.store.GetAccess(ctx)
		if err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrStoreUnavailable, "apiclient: read access token: %v", err)
		}
		// Absence is not an error; the server rejects the request.
		if access != "" {
			setBearer(out, access)
		}
	}

	if out.Header.Get(headerRequestID) == "" {
		out.Header.Set(headerRequestID, uuid.NewString())
	}
	return out, nil
}

// replay rebuilds the original request for its single resubmission.
func (c *Client) replay(req *http.Request, pol policy, access string) (*http.Request, error) {
	out, err := c.prepare(req, pol)
	if err != nil {
		return nil, err
	}
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, apperrors.Wrapf(apperrors.ErrBodyNotReplayable, "apiclient: %s %s", req.Method, req.URL.Path)
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, apperrors.Wrapf(err, "apiclient: rewind body")
		}
		out.Body = body
	}
	out.Header.Del(headerRequestID)
	out.Header.Set(headerRequestID, uuid.NewString())
	setBearer(out, access)
	return out, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.request(req.Method, 0)
		log.Debug().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("api: request failed")
		return nil, apperrors.Wrapf(err, "apiclient: %s %s", req.Method, req.URL.Path)
	}
	c.metrics.request(req.Method, resp.StatusCode)
	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Str("request_id", req.Header.Get(headerRequestID)).
		Bool("retried", Retried(req.Context())).
		Msg("api: request")
	return resp, nil
}

// recoverAccess obtains a fresh access credential or invalidates the session.
// The refresh ignores the caller's cancellation and is bounded by the client
// timeout instead.
func (c *Client) recoverAccess(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
	defer cancel()
	if !c.coalesce {
		return c.refreshAccess(ctx)
	}
	v, err, shared := c.refreshSF.Do("refresh", func() (interface{}, error) {
		return c.refreshAccess(ctx)
	})
	if shared {
		log.Debug().Msg("api: joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refreshTimeout() time.Duration {
	if c.httpClient.Timeout > 0 {
		return c.httpClient.Timeout
	}
	return defaultTimeout
}

func (c *Client) refreshAccess(ctx context.Context) (string, error) {
	refresh, err := c.store.GetRefresh(ctx)
	if err != nil {
		return "", c.invalidate(ctx, apperrors.Wrapf(apperrors.ErrStoreUnavailable, "read refresh token: %v", err))
	}
	if refresh == "" {
		c.metrics.refresh(refreshResultMissing)
		return "", c.invalidate(ctx, apperrors.ErrNoRefreshToken)
	}

	access, err := c.Refresh(ctx, refresh)
	if err != nil {
		c.metrics.refresh(refreshResultFailed)
		return "", c.invalidate(ctx, err)
	}
	if err := c.store.Save(ctx, access); err != nil {
		c.metrics.refresh(refreshResultFailed)
		return "", c.invalidate(ctx, apperrors.Wrapf(apperrors.ErrStoreUnavailable, "save access token: %v", err))
	}
	c.setDefaultBearer(access)
	c.metrics.refresh(refreshResultSuccess)

	if exp, ok := AccessExpiry(access); ok {
		log.Debug().Time("expires_at", exp).Msg("api: access token refreshed")
	}
	return access, nil
}

// invalidate clears the credentials, notifies subscribers and returns the
// fatal error handed back to the caller.
func (c *Client) invalidate(ctx context.Context, cause error) error {
	if err := c.store.Clear(ctx); err != nil {
		log.Err(err).Msg("api: failed to clear token store")
	}
	c.defaultsLock.Lock()
	c.defaults.Del(headerAuthorization)
	c.defaultsLock.Unlock()
	c.metrics.invalidation()

	refreshErr := &RefreshError{Err: cause}
	log.Warn().Err(cause).Msg("api: session invalidated")

	c.listenersLock.Lock()
	listeners := make([]InvalidationListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.listenersLock.Unlock()

	for _, l := range listeners {
		l(refreshErr)
	}
	return refreshErr
}

func (c *Client) setDefaultBearer(access string) {
	c.defaultsLock.Lock()
	defer c.defaultsLock.Unlock()
	c.defaults.Set(headerAuthorization, bearer(access))
}

func bearer(access string) string {
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	return tok.Type() + " " + tok.AccessToken
}

func setBearer(req *http.Request, access string) {
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	tok.SetAuthHeader(req)
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// ClearCredentials empties the token store and forgets the default bearer
// header without notifying invalidation subscribers. Used for a user-initiated
// logout.
func (c *Client) ClearCredentials(ctx context.Context) error {
	c.defaultsLock.Lock()
	c.defaults.Del(headerAuthorization)
	c.defaultsLock.Unlock()
	return c.store.Clear(ctx)
}
