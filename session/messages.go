package session

import (
	"github.com/jrsteele09/blood-bank-console/apiclient"
	apperrors "github.com/jrsteele09/blood-bank-console/internal/errors"
)

// Messages shown to the user
const (
	MsgFillAllFields        = "Please fill in all fields"
	MsgAllFieldsRequired    = "All fields are required"
	MsgPasswordTooShort     = "Password must be at least 8 characters long"
	MsgPasswordsDoNotMatch  = "Passwords do not match"
	MsgInvalidRole          = "Please select a valid role"
	MsgInvalidEmail         = "Please enter a valid email address"
	MsgCredentialsMismatch  = "The password or username does not match"
	MsgLoginFailed          = "Login failed. Please try again."
	MsgRegistrationFailed   = "Registration failed. Please check your information and try again."
	MsgProfileUpdateFailed  = "Profile update failed. Please try again."
	MsgPasswordChangeFailed = "Password change failed. Please try again."
	MsgSessionExpired       = "Your session has expired. Please sign in again."
	MinPasswordLength       = 8
)

// loginMessage picks the richest message the backend offered for a failed login.
func loginMessage(err error) string {
	var apiErr *apiclient.APIError
	if apperrors.As(err, &apiErr) {
		if msg := apiErr.FirstField("error", "detail", "message", "non_field_errors"); msg != "" {
			return msg
		}
		if apiErr.StatusCode == 401 {
			return MsgCredentialsMismatch
		}
	}
	return MsgLoginFailed
}

// registrationMessage only trusts the backend's "error" field.
func registrationMessage(err error) string {
	var apiErr *apiclient.APIError
	if apperrors.As(err, &apiErr) {
		if msg := apiErr.Field("error"); msg != "" {
			return msg
		}
	}
	return MsgRegistrationFailed
}

// messageOr returns the backend's message for err, or fallback.
func messageOr(err error, fallback string) string {
	if apiclient.IsSessionExpired(err) {
		return MsgSessionExpired
	}
	var apiErr *apiclient.APIError
	if apperrors.As(err, &apiErr) {
		if msg := apiErr.FirstField("error", "detail", "message", "non_field_errors"); msg != "" {
			return msg
		}
	}
	return fallback
}
