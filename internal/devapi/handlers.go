package devapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/blood-bank-console/users"
)

const (
	msgCredentialsMismatch = "The password or username does not match"
	msgNoCredentials       = "Authentication credentials were not provided."
	msgTokenNotValid       = "Given token not valid for any token type"
	msgRefreshInvalid      = "Token is invalid or expired"
	msgRefreshRequired     = "Refresh token is required."
	msgFieldRequired       = "This field is required."
	msgPasswordTooShort    = "This password is too short. It must contain at least 8 characters."
	msgPasswordsMismatch   = "Passwords do not match."
	codeTokenNotValid      = "token_not_valid"
	minPasswordLength      = 8
)

var (
	errUsernameTaken        = errors.New("A user with that username already exists.")
	errOldPasswordIncorrect = errors.New("Old password is incorrect.")
)

type ctxKey struct{}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	Role      string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPair struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type passwordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type profilePatch struct {
	Email       *string `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
}

// fieldErrors is the DRF validation payload: field name to list of messages
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error.")
		return
	}

	errs := fieldErrors{}
	for field, value := range map[string]string{
		"username":  in.Username,
		"email":     in.Email,
		"password":  in.Password,
		"password2": in.Password2,
		"role":      in.Role,
	} {
		if strings.TrimSpace(value) == "" {
			errs.add(field, msgFieldRequired)
		}
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			errs.add("email", "Enter a valid email address.")
		}
	}
	if in.Password != "" && len(in.Password) < minPasswordLength {
		errs.add("password", msgPasswordTooShort)
	}
	role, err := users.ParseRole(in.Role)
	if in.Role != "" && (err != nil || !role.IsSelfRegistrable()) {
		errs.add("role", `"`+in.Role+`" is not a valid choice.`)
	}
	if len(errs) == 0 && in.Password != in.Password2 {
		errs.add("password", msgPasswordsMismatch)
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	u, err := a.users.Create(users.User{
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.TrimSpace(in.Email),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      role,
	}, in.Password)
	if errors.Is(err, errUsernameTaken) {
		writeJSON(w, http.StatusBadRequest, fieldErrors{"username": {err.Error()}})
		return
	}
	if err != nil {
		log.Err(err).Msg("devapi: register")
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}

	log.Debug().Str("username", u.Username).Msg("devapi: user registered")
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnauthorized, msgCredentialsMismatch)
		return
	}
	u, ok := a.users.Authenticate(in.Username, in.Password)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, msgCredentialsMismatch)
		return
	}

	access, err := a.issue(tokenTypeAccess, u, a.accessTTL)
	if err != nil {
		log.Err(err).Msg("devapi: issue access token")
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}
	refresh, err := a.issue(tokenTypeRefresh, u, a.refreshTTL)
	if err != nil {
		log.Err(err).Msg("devapi: issue refresh token")
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, tokenPair{Access: access, Refresh: refresh, UserID: u.ID, Username: u.Username})
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	fail, delay := a.refreshHooks()
	if !hold(r, delay) {
		return
	}
	if fail {
		writeTokenError(w, msgRefreshInvalid)
		return
	}

	var in refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, fieldErrors{"refresh": {msgFieldRequired}})
		return
	}
	claims, err := a.verify(in.Refresh, tokenTypeRefresh)
	if err != nil {
		writeTokenError(w, msgRefreshInvalid)
		return
	}
	u, ok := a.users.Get(claims.UserID)
	if !ok {
		writeTokenError(w, msgRefreshInvalid)
		return
	}

	access, err := a.issue(tokenTypeAccess, u, a.accessTTL)
	if err != nil {
		log.Err(err).Msg("devapi: issue access token")
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Refresh == "" {
		writeDetail(w, http.StatusBadRequest, msgRefreshRequired)
		return
	}
	if claims, err := a.verify(in.Refresh, tokenTypeRefresh); err == nil {
		a.revoked.Add(claims.JTI, claims.Expires)
	}
	a.revoked.Cleanup(a.now())
	writeDetail(w, http.StatusResetContent, "Logged out successfully.")
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	var in passwordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error.")
		return
	}

	errs := fieldErrors{}
	if in.OldPassword == "" {
		errs.add("old_password", msgFieldRequired)
	}
	if in.NewPassword == "" {
		errs.add("new_password", msgFieldRequired)
	} else if len(in.NewPassword) < minPasswordLength {
		errs.add("new_password", msgPasswordTooShort)
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	if err := a.users.SetPassword(u.ID, in.OldPassword, in.NewPassword); err != nil {
		if errors.Is(err, errOldPasswordIncorrect) {
			writeJSON(w, http.StatusBadRequest, fieldErrors{"old_password": {err.Error()}})
			return
		}
		log.Err(err).Msg("devapi: change password")
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}
	writeDetail(w, http.StatusOK, "Password changed successfully.")
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	if !hold(r, a.profileHook()) {
		return
	}
	writeJSON(w, http.StatusOK, userFrom(r.Context()))
}

// hold delays the response by d and reports false if the client went away
func hold(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-r.Context().Done():
		return false
	}
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	current := userFrom(r.Context())
	var in profilePatch
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error.")
		return
	}
	if in.Email != nil {
		if _, err := mail.ParseAddress(*in.Email); err != nil {
			writeJSON(w, http.StatusBadRequest, fieldErrors{"email": {"Enter a valid email address."}})
			return
		}
	}

	u, ok := a.users.Update(current.ID, func(u *users.User) {
		if in.Email != nil {
			u.Email = *in.Email
		}
		if in.FirstName != nil {
			u.FirstName = *in.FirstName
		}
		if in.LastName != nil {
			u.LastName = *in.LastName
		}
		if in.PhoneNumber != nil {
			u.PhoneNumber = *in.PhoneNumber
		}
	})
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	if u.Role == users.RoleAdmin {
		writeJSON(w, http.StatusOK, a.users.List())
		return
	}
	writeJSON(w, http.StatusOK, []users.User{*u})
}

// requireAuth resolves the bearer access token to a user
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeDetail(w, http.StatusUnauthorized, msgNoCredentials)
			return
		}
		if a.takeForcedUnauthorized() {
			writeTokenError(w, msgTokenNotValid)
			return
		}
		claims, err := a.verify(token, tokenTypeAccess)
		if err != nil {
			writeTokenError(w, msgTokenNotValid)
			return
		}
		u, ok := a.users.Get(claims.UserID)
		if !ok || !u.IsActiveAccount {
			writeTokenError(w, "User not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func userFrom(ctx context.Context) *users.User {
	u, _ := ctx.Value(ctxKey{}).(*users.User)
	return u
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeTokenError(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": detail, "code": codeTokenNotValid})
}
