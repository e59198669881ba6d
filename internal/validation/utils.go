package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/deppfellow/crudrouter/internal/schema"
	"github.com/go-playground/validator/v10"
)

// extractValidationError converts the supported error shapes into field
// errors. Unknown errors become a message without field entries.
func extractValidationError(err error) (string, []errs.FieldError) {
	var fieldErrors []errs.FieldError

	var violations schema.Errors
	var custom CustomValidationErrors
	var validationErrors validator.ValidationErrors

	switch {
	case errors.As(err, &violations):
		for _, v := range violations {
			fieldErrors = append(fieldErrors, errs.FieldError{Field: v.Field, Error: v.Reason})
		}

	case errors.As(err, &custom):
		for _, ce := range custom {
			fieldErrors = append(fieldErrors, errs.FieldError{Field: ce.Field, Error: ce.Message})
		}

	case errors.As(err, &validationErrors):
		for _, fe := range validationErrors {
			fieldErrors = append(fieldErrors, errs.FieldError{
				Field: strings.ToLower(fe.Field()),
				Error: schema.DescribeRule(fe.Tag(), fe.Param(), fe.Kind()),
			})
		}

	default:
		return err.Error(), nil
	}

	return "Validation failed", fieldErrors
}

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValidUUID reports whether s is a canonical UUID, as used for request ids.
func IsValidUUID(s string) bool {
	return uuidRegex.MatchString(s)
}
