// Package validation binds request data and turns validation failures into
// 422 responses with one entry per offending field.
package validation

import (
	"errors"
	"fmt"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/labstack/echo/v4"
)

// Validatable is implemented by request types that know how to validate
// themselves. Validate returns validator.ValidationErrors,
// CustomValidationErrors or schema.Errors.
type Validatable interface {
	Validate() error
}

// Binder is implemented by request types that decode the request
// themselves instead of relying on echo's default binder.
type Binder interface {
	Bind(c echo.Context) error
}

// CustomValidationError is a hand-written field error.
type CustomValidationError struct {
	Field   string
	Message string
}

// CustomValidationErrors aggregates CustomValidationError values.
type CustomValidationErrors []CustomValidationError

func (c CustomValidationErrors) Error() string {
	return "Validation failed"
}

// BindAndValidate decodes the request into payload and validates it. Every
// failure, malformed input included, is a 422 *errs.HTTPError.
func BindAndValidate(c echo.Context, payload Validatable) error {
	var err error
	if b, ok := payload.(Binder); ok {
		err = b.Bind(c)
	} else {
		err = c.Bind(payload)
	}
	if err != nil {
		return bindError(err)
	}

	if err := payload.Validate(); err != nil {
		msg, fieldErrors := extractValidationError(err)
		return errs.NewUnprocessableEntityError(msg, true, fieldErrors)
	}

	return nil
}

func bindError(err error) error {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		return errs.NewUnprocessableEntityError(fmt.Sprint(echoErr.Message), false, nil)
	}

	msg, fieldErrors := extractValidationError(err)
	return errs.NewUnprocessableEntityError(msg, false, fieldErrors)
}
