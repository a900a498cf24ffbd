package devapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/blood-bank-console/internal/devapi"
	"github.com/jrsteele09/blood-bank-console/users"
)

const (
	testUsername = "donor1"
	testPassword = "password123"
)

type fixture struct {
	api *devapi.API
	srv *httptest.Server
}

func setup(t *testing.T) *fixture {
	t.Helper()
	api := devapi.New()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	_, err := api.SeedUser(users.User{Username: testUsername, Email: "donor1@example.com", Role: users.RoleDonor}, testPassword)
	require.NoError(t, err)
	return &fixture{api: api, srv: srv}
}

func (f *fixture) call(t *testing.T, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+devapi.BasePath+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (f *fixture) login(t *testing.T) (access, refresh string) {
	t.Helper()
	status, out := f.call(t, http.MethodPost, "/auth/login/", "", map[string]string{"username": testUsername, "password": testPassword})
	require.Equal(t, http.StatusOK, status)
	return out["access"].(string), out["refresh"].(string)
}

func TestLoginIssuesPair(t *testing.T) {
	f := setup(t)
	status, out := f.call(t, http.MethodPost, "/auth/login/", "", map[string]string{"username": testUsername, "password": testPassword})
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, out["access"])
	require.NotEmpty(t, out["refresh"])
	require.Equal(t, testUsername, out["username"])
	require.EqualValues(t, 1, out["user_id"])
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := setup(t)
	status, out := f.call(t, http.MethodPost, "/auth/login/", "", map[string]string{"username": testUsername, "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "The password or username does not match", out["detail"])
}

func TestProfileRequiresBearer(t *testing.T) {
	f := setup(t)
	status, _ := f.call(t, http.MethodGet, "/auth/user/profile/", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	access, _ := f.login(t)
	status, out := f.call(t, http.MethodGet, "/auth/user/profile/", access, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, testUsername, out["username"])
	require.Equal(t, "DONOR", out["role"])
}

func TestRefreshAfterExpiry(t *testing.T) {
	f := setup(t)
	access, refresh := f.login(t)

	f.api.ExpireAccessTokens()
	status, out := f.call(t, http.MethodGet, "/auth/user/profile/", access, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "token_not_valid", out["code"])

	status, out = f.call(t, http.MethodPost, "/auth/refresh/", "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusOK, status)
	fresh := out["access"].(string)

	status, _ = f.call(t, http.MethodGet, "/auth/user/profile/", fresh, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, f.api.Calls("/auth/refresh/"))
}

func TestFailRefreshHook(t *testing.T) {
	f := setup(t)
	_, refresh := f.login(t)
	f.api.FailRefresh(true)

	status, out := f.call(t, http.MethodPost, "/auth/refresh/", "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Token is invalid or expired", out["detail"])
}

func TestForceUnauthorizedHook(t *testing.T) {
	f := setup(t)
	access, _ := f.login(t)
	f.api.ForceUnauthorized(1)

	status, _ := f.call(t, http.MethodGet, "/auth/user/profile/", access, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	status, _ = f.call(t, http.MethodGet, "/auth/user/profile/", access, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestProfileDelayHook(t *testing.T) {
	f := setup(t)
	access, _ := f.login(t)
	f.api.SetProfileDelay(100 * time.Millisecond)

	start := time.Now()
	status, _ := f.call(t, http.MethodGet, "/auth/user/profile/", access, nil)
	require.Equal(t, http.StatusOK, status)
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestLogoutBlacklistsRefresh(t *testing.T) {
	f := setup(t)
	access, refresh := f.login(t)

	status, _ := f.call(t, http.MethodPost, "/auth/logout/", access, map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusResetContent, status)
	require.True(t, f.api.IsRefreshRevoked(refresh))

	status, _ = f.call(t, http.MethodPost, "/auth/refresh/", "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterValidation(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{
			name:  "duplicate username",
			body:  map[string]string{"username": testUsername, "email": "x@example.com", "password": testPassword, "password2": testPassword, "role": "DONOR"},
			field: "username",
		},
		{
			name:  "password mismatch",
			body:  map[string]string{"username": "new1", "email": "x@example.com", "password": testPassword, "password2": "password124", "role": "DONOR"},
			field: "password",
		},
		{
			name:  "admin role",
			body:  map[string]string{"username": "new2", "email": "x@example.com", "password": testPassword, "password2": testPassword, "role": "ADMIN"},
			field: "role",
		},
		{
			name:  "missing email",
			body:  map[string]string{"username": "new3", "password": testPassword, "password2": testPassword, "role": "DONOR"},
			field: "email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := f.call(t, http.MethodPost, "/auth/register/", "", tt.body)
			require.Equal(t, http.StatusBadRequest, status)
			require.Contains(t, out, tt.field)
		})
	}
}

func TestRegisterThenLogin(t *testing.T) {
	f := setup(t)
	status, out := f.call(t, http.MethodPost, "/auth/register/", "", map[string]string{
		"username": "hospital1", "email": "h1@example.com", "password": testPassword, "password2": testPassword, "role": "HOSPITAL",
	})
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "HOSPITAL", out["role"])
	require.NotContains(t, out, "password")

	status, _ = f.call(t, http.MethodPost, "/auth/login/", "", map[string]string{"username": "hospital1", "password": testPassword})
	require.Equal(t, http.StatusOK, status)
}

func TestChangePassword(t *testing.T) {
	f := setup(t)
	access, _ := f.login(t)

	status, out := f.call(t, http.MethodPost, "/auth/password/change/", access, map[string]string{"old_password": "nope", "new_password": "newpassword1"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, out, "old_password")

	status, _ = f.call(t, http.MethodPost, "/auth/password/change/", access, map[string]string{"old_password": testPassword, "new_password": "newpassword1"})
	require.Equal(t, http.StatusOK, status)

	status, _ = f.call(t, http.MethodPost, "/auth/login/", "", map[string]string{"username": testUsername, "password": "newpassword1"})
	require.Equal(t, http.StatusOK, status)
}

func TestListUsersByRole(t *testing.T) {
	f := setup(t)
	_, err := f.api.SeedUser(users.User{Username: "admin", Role: users.RoleAdmin}, testPassword)
	require.NoError(t, err)

	access, _ := f.login(t)
	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+devapi.BasePath+"/users/", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []users.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	require.Equal(t, testUsername, list[0].Username)
}
