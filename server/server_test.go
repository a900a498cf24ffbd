package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/blood-bank-console/apiclient"
	"github.com/jrsteele09/blood-bank-console/internal/config"
	"github.com/jrsteele09/blood-bank-console/internal/devapi"
	"github.com/jrsteele09/blood-bank-console/internal/flash"
	"github.com/jrsteele09/blood-bank-console/server"
	"github.com/jrsteele09/blood-bank-console/session"
	"github.com/jrsteele09/blood-bank-console/tokenstore"
	"github.com/jrsteele09/blood-bank-console/users"
)

const (
	donorUsername = "donor1"
	adminUsername = "admin1"
	testPassword  = "password123"
)

type consoleFixture struct {
	api     *devapi.API
	store   *tokenstore.Memory
	session *session.Manager
	server  *server.Server
}

func newConsole(t *testing.T) *consoleFixture {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ENV", "TEST")
	t.Setenv("TOKEN_STORE", config.TokenStoreMemory)
	t.Setenv("GUARD_WAIT", "300ms")
	t.Setenv("FLASH_TTL", "1m")
	cfg, err := config.Load("")
	require.NoError(t, err)

	api := devapi.New()
	backend := httptest.NewServer(api)
	t.Cleanup(backend.Close)
	_, err = api.SeedUser(users.User{Username: donorUsername, Email: "donor1@example.com", FirstName: "Dana", LastName: "Donor", Role: users.RoleDonor}, testPassword)
	require.NoError(t, err)
	_, err = api.SeedUser(users.User{Username: adminUsername, Email: "admin1@example.com", Role: users.RoleAdmin}, testPassword)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	store := tokenstore.NewMemory()
	client := apiclient.New(backend.URL+devapi.BasePath, store, apiclient.WithMetrics(apiclient.NewMetrics(reg)))
	sess := session.NewManager(client, store)
	t.Cleanup(sess.Close)

	srv, err := server.New(cfg, client, sess, reg)
	require.NoError(t, err)
	return &consoleFixture{api: api, store: store, session: sess, server: srv}
}

func (f *consoleFixture) rehydrate() *consoleFixture {
	f.session.Rehydrate(context.Background())
	return f
}

func (f *consoleFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *consoleFixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (f *consoleFixture) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

func (f *consoleFixture) login(t *testing.T, username string) {
	t.Helper()
	rec := f.postForm("/login", url.Values{"username": {username}, "password": {testPassword}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.True(t, f.session.Snapshot().IsAuthenticated())
}

func TestIndexRedirectsToDashboard(t *testing.T) {
	f := newConsole(t).rehydrate()
	rec := f.get("/")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestGuardedPageRedirectsAnonymousToLogin(t *testing.T) {
	f := newConsole(t).rehydrate()
	rec := f.get("/profile")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?next=%2Fprofile", rec.Header().Get("Location"))
}

func TestGuardedPageWaitsForRehydration(t *testing.T) {
	f := newConsole(t)
	go func() {
		time.Sleep(50 * time.Millisecond)
		f.session.Rehydrate(context.Background())
	}()

	rec := f.get("/dashboard")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?next=%2Fdashboard", rec.Header().Get("Location"))
}

func TestGuardedPageUnresolvedSessionIsUnavailable(t *testing.T) {
	f := newConsole(t)
	rec := f.get("/dashboard")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Empty(t, rec.Header().Get("Location"))
}

func TestGuestPageShowsLoadingWhileUnresolved(t *testing.T) {
	f := newConsole(t)
	rec := f.get("/login")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Loading...")
	require.NotContains(t, rec.Body.String(), "Sign in</h1>")
}

func TestLoginPageRenders(t *testing.T) {
	f := newConsole(t).rehydrate()
	rec := f.get("/login?next=%2Fprofile")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `name="next" value="/profile"`)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestLoginSuccessRedirectsToDashboard(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, donorUsername)

	rec := f.get("/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Welcome, Dana Donor")
	require.Contains(t, body, "Access token expires")

	pair, err := tokenstore.Load(context.Background(), f.store)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)
}

func TestLoginFollowsSafeNext(t *testing.T) {
	tests := []struct {
		name     string
		next     string
		expected string
	}{
		{"local path", "/profile", "/profile"},
		{"empty", "", "/dashboard"},
		{"protocol relative", "//evil.example.com", "/dashboard"},
		{"absolute", "https://evil.example.com/", "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConsole(t).rehydrate()
			rec := f.postForm("/login", url.Values{
				"username": {donorUsername},
				"password": {testPassword},
				"next":     {tt.next},
			})
			require.Equal(t, http.StatusSeeOther, rec.Code)
			require.Equal(t, tt.expected, rec.Header().Get("Location"))
		})
	}
}

func TestLoginFailureRerendersWithMessage(t *testing.T) {
	f := newConsole(t).rehydrate()
	rec := f.postForm("/login", url.Values{"username": {donorUsername}, "password": {"wrong-password"}})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, session.MsgCredentialsMismatch)
	require.Contains(t, body, `value="donor1"`)
	require.Equal(t, session.Anonymous, f.session.Snapshot().State)
}

func TestLoginMissingFieldsNeverReachBackend(t *testing.T) {
	f := newConsole(t).rehydrate()
	rec := f.postForm("/login", url.Values{"username": {donorUsername}})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), session.MsgFillAllFields)
	require.Zero(t, f.api.Calls(apiclient.PathLogin))
}

func TestLoginWithHTMXUsesRedirectHeader(t *testing.T) {
	f := newConsole(t).rehydrate()
	form := url.Values{"username": {donorUsername}, "password": {testPassword}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")

	rec := f.do(req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("HX-Redirect"))
}

func TestGuestPagesRedirectSignedInUsers(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, donorUsername)

	for _, path := range []string{"/login", "/register"} {
		rec := f.get(path)
		require.Equal(t, http.StatusSeeOther, rec.Code, path)
		require.Equal(t, "/dashboard", rec.Header().Get("Location"), path)
	}
}

func TestRegisterCreatesAccountAndSignsIn(t *testing.T) {
	f := newConsole(t).rehydrate()
	rec := f.postForm("/register", url.Values{
		"username":   {"hospital1"},
		"email":      {"hospital1@example.com"},
		"first_name": {"Harper"},
		"password":   {testPassword},
		"password2":  {testPassword},
		"role":       {string(users.RoleHospital)},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))
	snap := f.session.Snapshot()
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, users.RoleHospital, snap.Role())
}

func TestRegisterValidationKeepsForm(t *testing.T) {
	f := newConsole(t).rehydrate()
	rec := f.postForm("/register", url.Values{
		"username":  {"hospital1"},
		"email":     {"hospital1@example.com"},
		"password":  {testPassword},
		"password2": {"different-password"},
		"role":      {string(users.RoleHospital)},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, session.MsgPasswordsDoNotMatch)
	require.Contains(t, body, `value="hospital1@example.com"`)
	require.Contains(t, body, `value="HOSPITAL" selected`)
	require.Zero(t, f.api.Calls(apiclient.PathRegister))
}

func TestLogoutClearsSession(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, donorUsername)

	rec := f.postForm("/logout", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
	require.Equal(t, session.Anonymous, f.session.Snapshot().State)

	pair, err := tokenstore.Load(context.Background(), f.store)
	require.NoError(t, err)
	require.True(t, pair.Empty())

	rec = f.get("/dashboard")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?next=%2Fdashboard", rec.Header().Get("Location"))
}

func TestLogoutDuringProfileLoadRedirectsToLogin(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, donorUsername)
	f.api.SetProfileDelay(300 * time.Millisecond)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- f.get("/profile") }()
	time.Sleep(50 * time.Millisecond)
	f.postForm("/logout", url.Values{})

	rec := <-done
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?next=%2Fprofile", rec.Header().Get("Location"))
	require.Equal(t, session.Anonymous, f.session.Snapshot().State)

	rec = f.get("/dashboard")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?next=%2Fdashboard", rec.Header().Get("Location"))
}

func TestAdminPageRequiresAdminRole(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, donorUsername)

	rec := f.get("/admin/users")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestAdminPageListsUsers(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, adminUsername)

	rec := f.get("/admin/users")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, donorUsername)
	require.Contains(t, body, "Dana Donor")
	require.Contains(t, body, "Admin")
}

func TestProfileUpdate(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, donorUsername)

	rec := f.postForm("/profile", url.Values{"phone_number": {"+44 7700 900123"}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(t, "/profile", rec.Header().Get("Location"))

	snap := f.session.Snapshot()
	require.Equal(t, "+44 7700 900123", snap.User.PhoneNumber)
	require.Equal(t, "donor1@example.com", snap.User.Email)

	rec = f.get("/profile")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "+44 7700 900123")
}

func TestProfileUpdateRejectsBadEmail(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, donorUsername)

	rec := f.postForm("/profile", url.Values{"email": {"not-an-email"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), session.MsgInvalidEmail)
}

func TestChangePassword(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, donorUsername)

	rec := f.postForm("/profile/password", url.Values{
		"old_password":     {"wrong-password"},
		"new_password":     {"new-password-1"},
		"confirm_password": {"new-password-1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), session.MsgPasswordChangeFailed)

	rec = f.postForm("/profile/password", url.Values{
		"old_password":     {testPassword},
		"new_password":     {"new-password-1"},
		"confirm_password": {"new-password-1"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
}

func TestExpiredSessionDuringRequestRedirectsToLogin(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, donorUsername)
	f.api.ExpireAccessTokens()
	f.api.FailRefresh(true)

	rec := f.get("/profile")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?next=%2Fprofile", rec.Header().Get("Location"))

	snap := f.session.Snapshot()
	require.Equal(t, session.Anonymous, snap.State)
	require.Equal(t, session.MsgSessionExpired, snap.LastError)

	var texts []string
	for _, m := range f.server.Flashes().Pending() {
		texts = append(texts, m.Text)
	}
	require.Contains(t, texts, session.MsgSessionExpired)
}

func TestExpiredAccessIsRefreshedTransparently(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, adminUsername)
	f.api.ExpireAccessTokens()

	rec := f.get("/admin/users")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, f.api.Calls(apiclient.PathRefresh))
	require.True(t, f.session.Snapshot().IsAuthenticated())
}

func TestSessionStatus(t *testing.T) {
	f := newConsole(t)

	var status server.SessionStatus
	rec := f.get("/session")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "unknown", status.State)
	require.True(t, status.Loading)

	f.rehydrate()
	f.login(t, donorUsername)
	rec = f.get("/session")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "authenticated", status.State)
	require.False(t, status.Loading)
	require.NotNil(t, status.User)
	require.Equal(t, donorUsername, status.User.Username)
	require.NotNil(t, status.AccessExpiresAt)
}

func TestHealth(t *testing.T) {
	f := newConsole(t)
	rec := f.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","session_ready":false}`, rec.Body.String())

	f.rehydrate()
	rec = f.get("/healthz")
	require.JSONEq(t, `{"status":"ok","session_ready":true}`, rec.Body.String())
}

func TestFlashShownAndDismissed(t *testing.T) {
	f := newConsole(t).rehydrate()
	id := f.server.Flashes().Add(flash.Info, "Donation campaign starts Monday")

	rec := f.get("/login")
	require.Contains(t, rec.Body.String(), "Donation campaign starts Monday")

	rec = f.do(httptest.NewRequest(http.MethodPost, "/flash/"+id+"/dismiss", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, f.server.Flashes().Pending())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newConsole(t).rehydrate()
	f.login(t, donorUsername)

	rec := f.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "bloodbank_console_api_requests_total")
}

func TestStaticFiles(t *testing.T) {
	f := newConsole(t)
	rec := f.get("/static/console.css")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Cache-Control"), "max-age=300")

	rec = f.get("/static/missing.css")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
