package session

import "github.com/jrsteele09/blood-bank-console/users"

// Result is the outcome of a user-facing session operation. Exactly one of
// User (on success) or Error (on failure) is meaningful.
type Result struct {
	Success bool
	User    *users.User
	Error   string
}

// Ok wraps a successful outcome
func Ok(u *users.User) Result {
	return Result{Success: true, User: u}
}

// Err wraps a failed outcome with a message fit for display
func Err(message string) Result {
	return Result{Error: message}
}
