package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Options tunes Validate.
type Options struct {
	// Partial skips required-field checks (update payloads).
	Partial bool

	// Strict rejects fields the schema does not declare; otherwise they are dropped.
	Strict bool
}

// Violation is one reason a payload was rejected.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Errors aggregates every violation found in a payload.
type Errors []Violation

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Field + " " + v.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Sort orders the violations by field name, keeping the order of
// violations on the same field.
func (e Errors) Sort() {
	sort.SliceStable(e, func(i, j int) bool {
		return e[i].Field < e[j].Field
	})
}

// Validate checks payload against s and returns a normalized copy.
//
// Integers come back as int64, numbers as float64 and timestamps as UTC
// time.Time. A nil value is kept for optional fields and rejected for
// required ones. On failure the returned error is Errors, sorted by field.
func Validate(payload map[string]any, s Schema, opts Options) (map[string]any, error) {
	var violations Errors
	out := make(map[string]any, len(payload))

	for key, raw := range payload {
		f, ok := s.Field(key)
		if !ok {
			if opts.Strict {
				violations = append(violations, Violation{Field: key, Reason: "is not a recognized field"})
			}
			continue
		}

		if raw == nil {
			if f.Required {
				violations = append(violations, Violation{Field: key, Reason: "must not be null"})
				continue
			}
			out[key] = nil
			continue
		}

		v, reason := f.coerce(raw)
		if reason != "" {
			violations = append(violations, Violation{Field: key, Reason: reason})
			continue
		}

		if f.Rules != "" {
			if err := validate.Var(v, f.Rules); err != nil {
				violations = append(violations, Violation{Field: key, Reason: ruleReason(err)})
				continue
			}
		}
		out[key] = v
	}

	if !opts.Partial {
		for _, f := range s.fields {
			if !f.Required {
				continue
			}
			if _, ok := payload[f.Name]; !ok {
				violations = append(violations, Violation{Field: f.Name, Reason: "is required"})
			}
		}
	}

	if len(violations) > 0 {
		violations.Sort()
		return nil, violations
	}
	return out, nil
}

func ruleReason(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return DescribeRule(fe.Tag(), fe.Param(), fe.Kind())
	}
	return "is invalid"
}

// DescribeRule turns a failed validator tag into a client-facing reason.
// kind distinguishes length rules on strings from value rules on numbers.
func DescribeRule(tag, param string, kind reflect.Kind) string {
	switch tag {
	case "required":
		return "is required"
	case "min":
		if kind == reflect.String {
			return fmt.Sprintf("must be at least %s characters", param)
		}
		return fmt.Sprintf("must be at least %s", param)
	case "max":
		if kind == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", param)
		}
		return fmt.Sprintf("must not exceed %s", param)
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", param)
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", param)
	case "oneof":
		return fmt.Sprintf("must be one of: %s", param)
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "e164":
		return "must be a valid phone number with country code"
	case "uuid":
		return "must be a valid UUID"
	case "dive":
		return "some items are invalid"
	}
	if param != "" {
		return fmt.Sprintf("failed %s:%s", tag, param)
	}
	return "failed " + tag
}
