// Package schema declares resource payload shapes and validates inbound
// payloads against them.
//
// A Schema is an ordered, immutable list of fields. Validate is a pure
// function: it either returns a normalized copy of the payload or an Errors
// value listing every violation, never a partially accepted payload.
package schema

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// identifierRe restricts field (and table) names to safe SQL identifiers.
var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// validate is shared by every schema; validator.Validate is safe for concurrent use.
var validate = validator.New()

// IDField is the generated identifier every entity carries. Schemas may not declare it.
const IDField = "id"

// IsIdentifier reports whether name is usable as a table or column name.
func IsIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// Schema is an ordered set of fields. The zero value is an empty schema.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New builds a Schema, rejecting empty, duplicate, reserved or malformed
// field names, unknown types and rule strings the validator does not know.
func New(fields ...Field) (Schema, error) {
	s := Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := f.check(); err != nil {
			return Schema{}, err
		}
		if _, dup := s.index[f.Name]; dup {
			return Schema{}, fmt.Errorf("field %q declared twice", f.Name)
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustNew is New for package-level declarations; it panics on error.
func MustNew(fields ...Field) Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// Fields returns a copy of the fields in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the field names in declaration order.
func (s Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Field looks a field up by name.
func (s Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Optional returns a copy of s with every field optional. Used to derive an
// update shape from a create shape.
func (s Schema) Optional() Schema {
	fields := s.Fields()
	for i := range fields {
		fields[i].Required = false
	}
	return MustNew(fields...)
}

// Project keeps the keys of rec that s declares, plus the id.
// Absent and nil values stay absent.
func (s Schema) Project(rec map[string]any) map[string]any {
	out := make(map[string]any, len(s.fields)+1)
	if id, ok := rec[IDField]; ok {
		out[IDField] = id
	}
	for _, f := range s.fields {
		if v, ok := rec[f.Name]; ok && v != nil {
			out[f.Name] = v
		}
	}
	return out
}
