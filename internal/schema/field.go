package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// FieldType is the declared type of a field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInteger   FieldType = "integer"
	TypeNumber    FieldType = "number"
	TypeBoolean   FieldType = "boolean"
	TypeTimestamp FieldType = "timestamp"
)

// Valid reports whether t is a known type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeTimestamp:
		return true
	}
	return false
}

// Field declares one payload field.
type Field struct {
	Name string    `yaml:"name" json:"name"`
	Type FieldType `yaml:"type" json:"type"`

	// Required fields must be present (and non-null) outside partial validation.
	Required bool `yaml:"required" json:"required"`

	// Unique asks the backend for a uniqueness constraint on the column.
	Unique bool `yaml:"unique" json:"unique,omitempty"`

	// Rules is a go-playground/validator tag applied to the decoded value,
	// e.g. "email" or "min=1,max=100".
	Rules string `yaml:"rules" json:"rules,omitempty"`
}

func (f Field) check() (err error) {
	if f.Name == "" {
		return fmt.Errorf("field name is empty")
	}
	if f.Name == IDField {
		return fmt.Errorf("field %q is reserved", IDField)
	}
	if !IsIdentifier(f.Name) {
		return fmt.Errorf("field %q is not a valid identifier", f.Name)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
	}
	if f.Rules == "" {
		return nil
	}

	// validator panics on undefined tags; surface that as a declaration error
	// instead of a request-time panic.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("field %q has invalid rules %q: %v", f.Name, f.Rules, r)
		}
	}()
	_ = validate.Var(f.zero(), f.Rules)
	return nil
}

func (f Field) zero() any {
	switch f.Type {
	case TypeInteger:
		return int64(0)
	case TypeNumber:
		return float64(0)
	case TypeBoolean:
		return false
	case TypeTimestamp:
		return time.Time{}
	default:
		return ""
	}
}

// coerce checks raw against the field type and returns the normalized value.
// The returned string is the violation reason when the type does not match.
func (f Field) coerce(raw any) (any, string) {
	switch f.Type {
	case TypeString:
		if s, ok := raw.(string); ok {
			return s, ""
		}
		return nil, "must be a string"

	case TypeInteger:
		switch v := raw.(type) {
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return i, ""
			}
		case float64:
			if v == math.Trunc(v) && !math.IsInf(v, 0) {
				return int64(v), ""
			}
		case int:
			return int64(v), ""
		case int64:
			return v, ""
		case int32:
			return int64(v), ""
		}
		return nil, "must be an integer"

	case TypeNumber:
		switch v := raw.(type) {
		case json.Number:
			if n, err := v.Float64(); err == nil {
				return n, ""
			}
		case float64:
			return v, ""
		case float32:
			return float64(v), ""
		case int:
			return float64(v), ""
		case int64:
			return float64(v), ""
		}
		return nil, "must be a number"

	case TypeBoolean:
		if b, ok := raw.(bool); ok {
			return b, ""
		}
		return nil, "must be a boolean"

	case TypeTimestamp:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), ""
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t.UTC(), ""
			}
		}
		return nil, "must be an RFC 3339 timestamp"
	}
	return nil, "has an unsupported type"
}

// ParseQuery converts a query-string value into the field's Go type. It is
// used for list filters.
func (f Field) ParseQuery(raw string) (any, error) {
	var (
		v   any
		err error
	)
	switch f.Type {
	case TypeInteger:
		v, err = strconv.ParseInt(raw, 10, 64)
	case TypeNumber:
		v, err = strconv.ParseFloat(raw, 64)
	case TypeBoolean:
		v, err = strconv.ParseBool(raw)
	case TypeTimestamp:
		var t time.Time
		t, err = time.Parse(time.RFC3339, raw)
		v = t.UTC()
	default:
		return raw, nil
	}
	if err != nil {
		return nil, fmt.Errorf("must be a valid %s", f.Type)
	}
	return v, nil
}

// Normalize converts a value read back from a store into the field's Go
// type: SQL drivers hand back []byte for text, int64 for booleans and so on.
func (f Field) Normalize(v any) any {
	if v == nil {
		return nil
	}
	switch f.Type {
	case TypeString:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
	case TypeInteger:
		switch n := v.(type) {
		case int:
			return int64(n)
		case int32:
			return int64(n)
		case float64:
			return int64(n)
		}
	case TypeNumber:
		switch n := v.(type) {
		case float32:
			return float64(n)
		case int64:
			return float64(n)
		case int32:
			return float64(n)
		}
	case TypeBoolean:
		switch n := v.(type) {
		case int64:
			return n != 0
		case int:
			return n != 0
		}
	case TypeTimestamp:
		switch t := v.(type) {
		case time.Time:
			return t.UTC()
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return parsed.UTC()
			}
		case []byte:
			if parsed, err := time.Parse(time.RFC3339Nano, string(t)); err == nil {
				return parsed.UTC()
			}
		}
	}
	return v
}
