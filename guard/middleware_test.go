package guard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/blood-bank-console/guard"
	"github.com/jrsteele09/blood-bank-console/session"
	"github.com/jrsteele09/blood-bank-console/users"
)

// fakeSource is a session source whose state the test controls
type fakeSource struct {
	mu    sync.Mutex
	snap  session.Snapshot
	ready chan struct{}
	once  sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{snap: unknown, ready: make(chan struct{})}
}

func (f *fakeSource) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) Ready() <-chan struct{} { return f.ready }

func (f *fakeSource) resolve(snap session.Snapshot) {
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
	f.once.Do(func() { close(f.ready) })
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("protected content"))
}

func serve(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}

func TestMiddlewareWaitsForRehydration(t *testing.T) {
	src := newFakeSource()
	mw := guard.NewMiddleware(src, guard.WithWait(2*time.Second))
	h := mw.RequireAuth()(okHandler)

	go func() {
		time.Sleep(50 * time.Millisecond)
		src.resolve(donor)
	}()

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "protected content", rec.Body.String())
}

func TestMiddlewareNeverRedirectsBeforeResolution(t *testing.T) {
	src := newFakeSource()
	mw := guard.NewMiddleware(src, guard.WithWait(50*time.Millisecond))
	h := mw.RequireAuth()(okHandler)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Empty(t, rec.Body.String())
	require.Empty(t, rec.Header().Get("Location"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMiddlewareHonoursRequestContext(t *testing.T) {
	src := newFakeSource()
	mw := guard.NewMiddleware(src, guard.WithWait(time.Minute))
	h := mw.RequireAuth()(okHandler)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/dashboard", nil).WithContext(ctx))
	require.Less(t, time.Since(start), 10*time.Second)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddlewareRedirectsAnonymous(t *testing.T) {
	src := newFakeSource()
	src.resolve(anonymous)
	h := guard.NewMiddleware(src).RequireAuth()(okHandler)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/profile?tab=1", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?next=%2Fprofile%3Ftab%3D1", rec.Header().Get("Location"))
	require.NotContains(t, rec.Body.String(), "protected content")
}

func TestMiddlewareHTMXRedirect(t *testing.T) {
	src := newFakeSource()
	src.resolve(anonymous)
	h := guard.NewMiddleware(src).RequireAuth()(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(h, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "/login?next=%2Fdashboard", rec.Header().Get("HX-Redirect"))
}

func TestMiddlewareRoleMismatch(t *testing.T) {
	src := newFakeSource()
	src.resolve(donor)
	h := guard.NewMiddleware(src).RequireAuth(users.RoleAdmin)(okHandler)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestGuestMiddleware(t *testing.T) {
	src := newFakeSource()
	mw := guard.NewMiddleware(src, guard.WithWait(20*time.Millisecond))
	h := mw.GuestOnly()(okHandler)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Loading...")

	src.resolve(donor)
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestGuestMiddlewareCustomLoadingPage(t *testing.T) {
	src := newFakeSource()
	loading := func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("please wait")) }
	mw := guard.NewMiddleware(src, guard.WithWait(10*time.Millisecond), guard.WithLoadingPage(loading))

	rec := serve(mw.GuestOnly()(okHandler), httptest.NewRequest(http.MethodGet, "/register", nil))
	require.Equal(t, "please wait", rec.Body.String())

	src.resolve(anonymous)
	rec = serve(mw.GuestOnly()(okHandler), httptest.NewRequest(http.MethodGet, "/register", nil))
	require.Equal(t, "protected content", rec.Body.String())
}
