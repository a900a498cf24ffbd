// Package tokenstore persists the console's credential pair.
//
// Credentials are opaque: no backend inspects or validates them. An empty
// string means the credential is absent. Both credentials live under two fixed
// names so every backend lays them out the same way.
package tokenstore

import "context"

const (
	// AccessKey names the access credential entry
	AccessKey = "access_token"
	// RefreshKey names the refresh credential entry
	RefreshKey = "refresh_token"
)

// Store reads and writes the credential pair.
//
// A missing access credential with a present refresh credential is a valid
// state (a refresh is due). Both absent means logged out.
type Store interface {
	// Save replaces the access credential and leaves the refresh credential untouched.
	Save(ctx context.Context, access string) error
	// SaveAll replaces both credentials as one write.
	SaveAll(ctx context.Context, access, refresh string) error
	// GetAccess returns the access credential or "" when absent.
	GetAccess(ctx context.Context) (string, error)
	// GetRefresh returns the refresh credential or "" when absent.
	GetRefresh(ctx context.Context) (string, error)
	// Clear removes both credentials.
	Clear(ctx context.Context) error
}

// Pair is a snapshot of both credentials
type Pair struct {
	Access  string
	Refresh string
}

// Empty reports whether neither credential is present
func (p Pair) Empty() bool {
	return p.Access == "" && p.Refresh == ""
}

// Load reads both credentials from s
func Load(ctx context.Context, s Store) (Pair, error) {
	access, err := s.GetAccess(ctx)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.GetRefresh(ctx)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}
