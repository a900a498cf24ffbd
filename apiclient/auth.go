package apiclient

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/jrsteele09/blood-bank-console/internal/errors"
	"github.com/jrsteele09/blood-bank-console/tokenstore"
	"github.com/jrsteele09/blood-bank-console/users"
)

// Backend auth endpoints, relative to the API base URL
const (
	PathLogin          = "/auth/login/"
	PathRegister       = "/auth/register/"
	PathProfile        = "/auth/user/profile/"
	PathRefresh        = "/auth/refresh/"
	PathLogout         = "/auth/logout/"
	PathChangePassword = "/auth/password/change/"
)

// LoginRequest is the body of POST /auth/login/
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the credential pair issued at login
type LoginResponse struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// RegisterRequest is the body of POST /auth/register/
type RegisterRequest struct {
	Username  string         `json:"username"`
	Email     string         `json:"email"`
	FirstName string         `json:"first_name,omitempty"`
	LastName  string         `json:"last_name,omitempty"`
	Password  string         `json:"password"`
	Password2 string         `json:"password2"`
	Role      users.RoleType `json:"role"`
}

// ProfileUpdate is the body of PATCH /auth/user/profile/; nil fields are left unchanged
type ProfileUpdate struct {
	Email       *string `json:"email,omitempty"`
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// ChangePasswordRequest is the body of POST /auth/password/change/
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// Login exchanges a username and password for a credential pair. It is sent
// anonymously; a 401 means the credentials were rejected.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.PostJSON(Public(ctx), PathLogin, LoginRequest{Username: username, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	if out.Access == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "apiclient: login response without access token")
	}
	return &out, nil
}

// Register creates an account. No credentials are returned; callers log in afterwards.
func (c *Client) Register(ctx context.Context, r RegisterRequest) error {
	return c.PostJSON(Public(ctx), PathRegister, r, nil)
}

// Profile fetches the identity bound to the current access credential.
func (c *Client) Profile(ctx context.Context) (*users.User, error) {
	var raw json.RawMessage
	if err := c.GetJSON(ctx, PathProfile, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// UpdateProfile changes profile fields and returns the updated identity.
func (c *Client) UpdateProfile(ctx context.Context, u ProfileUpdate) (*users.User, error) {
	var raw json.RawMessage
	if err := c.PatchJSON(ctx, PathProfile, u, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// ChangePassword replaces the current user's password.
func (c *Client) ChangePassword(ctx context.Context, r ChangePasswordRequest) error {
	return c.PostJSON(ctx, PathChangePassword, r, nil)
}

// Refresh exchanges a refresh credential for a new access credential. It
// bypasses the refresh path itself so a rejected refresh never recurses.
func (c *Client) Refresh(ctx context.Context, refresh string) (string, error) {
	var out refreshResponse
	if err := c.PostJSON(Public(ctx), PathRefresh, refreshRequest{Refresh: refresh}, &out); err != nil {
		return "", fmt.Errorf("apiclient: %w: %w", apperrors.ErrRefreshFailed, err)
	}
	if out.Access == "" {
		return "", apperrors.Wrapf(apperrors.ErrRefreshFailed, "apiclient: refresh response without access token")
	}
	return out.Access, nil
}

// RevokeRefresh asks the backend to blacklist the refresh credential of pair.
// pair is passed explicitly because callers usually clear the store first.
func (c *Client) RevokeRefresh(ctx context.Context, pair tokenstore.Pair) error {
	if pair.Refresh == "" {
		return apperrors.ErrNoRefreshToken
	}
	ctx = NoRecovery(ctx)
	if pair.Access != "" {
		ctx = WithBearer(ctx, pair.Access)
	}
	return c.PostJSON(ctx, PathLogout, refreshRequest{Refresh: pair.Refresh}, nil)
}

// decodeUser accepts either the identity itself or an object wrapping it under "user".
func decodeUser(raw json.RawMessage) (*users.User, error) {
	var wrapped struct {
		User *users.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var u users.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, apperrors.Wrapf(err, "apiclient: decode profile")
	}
	if u.Username == "" && u.ID == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "apiclient: empty profile")
	}
	return &u, nil
}
