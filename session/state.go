package session

import "github.com/jrsteele09/blood-bank-console/users"

// State is the lifecycle position of the console session
type State int

const (
	// Unknown is the initial state, before rehydration finishes
	Unknown State = iota
	// Authenticated means an identity is present
	Authenticated
	// Anonymous means there is no usable credential
	Anonymous
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "invalid"
}

// Snapshot is a read-only copy of the session at one instant
type Snapshot struct {
	State     State
	User      *users.User // nil unless State is Authenticated
	Loading   bool        // true until rehydration has finished
	LastError string
}

// IsAuthenticated reports whether the snapshot carries an identity
func (s Snapshot) IsAuthenticated() bool {
	return s.State == Authenticated && s.User != nil
}

// Role returns the identity's role or "" when anonymous
func (s Snapshot) Role() users.RoleType {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}
