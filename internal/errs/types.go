package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Store sentinels. Adapters wrap these (fmt.Errorf("...: %w", ErrNotFound))
// and keep the driver error in the chain when there is one.
var (
	// ErrNotFound reports that no entity carries the requested id.
	ErrNotFound = errors.New("record not found")

	// ErrConflict reports a uniqueness or constraint violation.
	ErrConflict = errors.New("record conflicts with existing data")

	// ErrStoreUnavailable reports that the backing store could not be reached.
	// It is fatal to the request and never retried here.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAlreadyMounted is returned when a resource is mounted twice.
	ErrAlreadyMounted = errors.New("resource already mounted")
)

// ConfigError describes a malformed resource descriptor or a registration
// collision. It is produced at startup only.
type ConfigError struct {
	// Resource is the descriptor name the error relates to (may be empty).
	Resource string

	// Reason is the human-readable explanation.
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Resource == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid resource %q: %s", e.Resource, e.Reason)
}

// NewConfigError builds a ConfigError with a formatted reason.
func NewConfigError(resource, format string, args ...any) *ConfigError {
	return &ConfigError{Resource: resource, Reason: fmt.Sprintf(format, args...)}
}

// FieldError is one field-level problem reported back to the client.
//
//	{ "field": "email", "error": "must be a valid email address" }
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ActionType is a string-based enum describing what the client should do.
type ActionType string

const (
	// ActionTypeRedirect tells the client it should redirect to Action.Value.
	ActionTypeRedirect ActionType = "redirect"
)

// Action is an optional instruction for the client.
type Action struct {
	Type    ActionType `json:"type"`
	Message string     `json:"message"`
	Value   string     `json:"value"`
}

// HTTPError is the error shape written to API clients.
//
// Code is machine friendly ("NOT_FOUND", "USER_ALREADY_EXISTS"), Message is
// for humans, Status is the HTTP status. Override tells clients the message is
// safe to show as-is. Errors carries per-field validation problems.
type HTTPError struct {
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Status   int          `json:"status"`
	Override bool         `json:"override"`
	Errors   []FieldError `json:"errors"`
	Action   *Action      `json:"action"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Is reports true for any *HTTPError target; Code and Status are not compared.
func (e *HTTPError) Is(target error) bool {
	_, ok := target.(*HTTPError)
	return ok
}

// WithMessage returns a copy of e with Message replaced.
func (e *HTTPError) WithMessage(message string) *HTTPError {
	cp := *e
	cp.Message = message
	return &cp
}

// MakeUpperCaseWithUnderscores turns "Unprocessable Entity" into "UNPROCESSABLE_ENTITY".
func MakeUpperCaseWithUnderscores(str string) string {
	return strings.ToUpper(strings.ReplaceAll(str, " ", "_"))
}
