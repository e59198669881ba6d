package errs

import (
	"net/http"
)

// statusCode returns the default machine code for an HTTP status,
// e.g. 409 -> "CONFLICT".
func statusCode(status int) string {
	return MakeUpperCaseWithUnderscores(http.StatusText(status))
}

func newHTTPError(status int, message string, override bool, code *string) *HTTPError {
	formatted := statusCode(status)
	if code != nil {
		formatted = *code
	}
	return &HTTPError{
		Code:     formatted,
		Message:  message,
		Status:   status,
		Override: override,
	}
}

// NewUnauthorizedError creates a 401 Unauthorized HTTPError.
func NewUnauthorizedError(message string, override bool) *HTTPError {
	return newHTTPError(http.StatusUnauthorized, message, override, nil)
}

// NewForbiddenError creates a 403 Forbidden HTTPError.
func NewForbiddenError(message string, override bool) *HTTPError {
	return newHTTPError(http.StatusForbidden, message, override, nil)
}

// NewBadRequestError creates a 400 Bad Request HTTPError.
//
// code overrides the default "BAD_REQUEST" code when non-nil; errors and action
// are attached as-is.
func NewBadRequestError(message string, override bool, code *string, errors []FieldError, action *Action) *HTTPError {
	e := newHTTPError(http.StatusBadRequest, message, override, code)
	e.Errors = errors
	e.Action = action
	return e
}

// NewNotFoundError creates a 404 Not Found HTTPError.
func NewNotFoundError(message string, override bool, code *string) *HTTPError {
	return newHTTPError(http.StatusNotFound, message, override, code)
}

// NewConflictError creates a 409 Conflict HTTPError, used for uniqueness and
// constraint violations.
func NewConflictError(message string, override bool, code *string) *HTTPError {
	return newHTTPError(http.StatusConflict, message, override, code)
}

// NewUnprocessableEntityError creates a 422 HTTPError carrying field errors.
//
// Every payload, path or query problem on a resource route ends up here.
func NewUnprocessableEntityError(message string, override bool, errors []FieldError) *HTTPError {
	e := newHTTPError(http.StatusUnprocessableEntity, message, override, nil)
	e.Errors = errors
	return e
}

// NewServiceUnavailableError creates a 503 HTTPError. It is returned as-is when
// the backing store is unreachable; no retry happens on the server side.
func NewServiceUnavailableError(message string) *HTTPError {
	return newHTTPError(http.StatusServiceUnavailable, message, false, nil)
}

// NewTooManyRequestsError creates a 429 HTTPError for the rate limiter.
func NewTooManyRequestsError(message string) *HTTPError {
	return newHTTPError(http.StatusTooManyRequests, message, false, nil)
}

// NewInternalServerError creates a generic 500 HTTPError. The real cause is
// logged, never sent to the client.
func NewInternalServerError() *HTTPError {
	return newHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false, nil)
}

// ValidationError converts an arbitrary validation error into a 422.
func ValidationError(err error) *HTTPError {
	return NewUnprocessableEntityError("Validation failed: "+err.Error(), false, nil)
}
