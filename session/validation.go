package session

import (
	"net/mail"
	"strings"

	apperrors "github.com/jrsteele09/blood-bank-console/internal/errors"
	"github.com/jrsteele09/blood-bank-console/users"
)

// Credentials are the login form fields
type Credentials struct {
	Username string
	Password string
}

// Registration are the sign-up form fields
type Registration struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Password2 string
	Role      string
}

// ValidationError is a caller-side rejection; it never reaches the network.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return apperrors.ErrValidation }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// Validate checks the login form
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return invalid(MsgFillAllFields)
	}
	return nil
}

// Validate checks the sign-up form in the order the form reports problems
func (r Registration) Validate() error {
	if strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.Email) == "" ||
		strings.TrimSpace(r.Role) == "" || r.Password == "" || r.Password2 == "" {
		return invalid(MsgAllFieldsRequired)
	}
	if len(r.Password) < MinPasswordLength {
		return invalid(MsgPasswordTooShort)
	}
	if r.Password != r.Password2 {
		return invalid(MsgPasswordsDoNotMatch)
	}
	if !validEmail(r.Email) {
		return invalid(MsgInvalidEmail)
	}
	role, err := users.ParseRole(r.Role)
	if err != nil || !role.IsSelfRegistrable() {
		return invalid(MsgInvalidRole)
	}
	return nil
}

// validatePasswordChange checks the change-password form
func validatePasswordChange(oldPassword, newPassword, confirm string) error {
	if oldPassword == "" || newPassword == "" || confirm == "" {
		return invalid(MsgAllFieldsRequired)
	}
	if len(newPassword) < MinPasswordLength {
		return invalid(MsgPasswordTooShort)
	}
	if newPassword != confirm {
		return invalid(MsgPasswordsDoNotMatch)
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Name == ""
}
