package apiclient

import (
	"context"
	"encoding/json"

	apperrors "github.com/jrsteele09/blood-bank-console/internal/errors"
	"github.com/jrsteele09/blood-bank-console/users"
)

// PathUsers lists accounts; admins see everyone, others only themselves
const PathUsers = "/users/"

// ListUsers returns the accounts visible to the current user. Both a bare
// array and a paginated {"results": [...]} body are accepted.
func (c *Client) ListUsers(ctx context.Context) ([]users.User, error) {
	var raw json.RawMessage
	if err := c.GetJSON(ctx, PathUsers, &raw); err != nil {
		return nil, err
	}

	var list []users.User
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var page struct {
		Results []users.User `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, apperrors.Wrapf(err, "apiclient: decode user list")
	}
	return page.Results, nil
}
