package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/blood-bank-console/internal/errors"
	"github.com/jrsteele09/blood-bank-console/internal/utils"
)

const maxErrorBody = 1 << 20

// APIError is a non-2xx response from the backend. The body is kept verbatim;
// when it is a JSON object its fields are decoded as well.
type APIError struct {
	StatusCode int
	Fields     map[string]any
	Body       []byte
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &APIError{StatusCode: resp.StatusCode, Body: body}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err == nil {
		e.Fields = fields
	}
	return e
}

func (e *APIError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("api: status %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("api: status %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return apperrors.ErrUnexpectedStatus
}

// Field returns the named field as a string. Lists (as produced for form
// validation errors) yield their first string element.
func (e *APIError) Field(name string) string {
	if e == nil || e.Fields == nil {
		return ""
	}
	switch v := e.Fields[name].(type) {
	case string:
		return v
	case []any:
		if items := utils.ToStringSlice(v); len(items) > 0 {
			return items[0]
		}
	}
	return ""
}

// FirstField returns the first non-empty field among names.
func (e *APIError) FirstField(names ...string) string {
	for _, n := range names {
		if v := e.Field(n); v != "" {
			return v
		}
	}
	return ""
}

// Message is a best-effort human readable summary of the error payload.
func (e *APIError) Message() string {
	if msg := e.FirstField("error", "detail", "message", "non_field_errors"); msg != "" {
		return msg
	}
	if e.Fields == nil {
		return strings.TrimSpace(string(e.Body))
	}
	return ""
}

// RefreshError reports that an expired session could not be recovered. The
// credentials have already been cleared when it is returned.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s: %v", apperrors.ErrSessionExpired, e.Err)
}

// Unwrap exposes both the session-expired category and the underlying cause.
func (e *RefreshError) Unwrap() []error {
	return []error{apperrors.ErrSessionExpired, e.Err}
}

// IsSessionExpired reports whether err means the session was invalidated.
func IsSessionExpired(err error) bool {
	return apperrors.Is(err, apperrors.ErrSessionExpired)
}

// StatusCode extracts the HTTP status from an *APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if apperrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
