// Package resource describes REST resources: a name, a URL prefix and the
// create/read/update shapes their payloads must follow.
//
// Descriptors are built once at startup (in code or from a YAML file) and
// are immutable afterwards.
package resource

import (
	"fmt"
	"strings"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/deppfellow/crudrouter/internal/schema"
)

// Store names a persistence backend a descriptor may pin itself to.
const (
	StoreDefault  = ""
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// ReservedNames are the list query parameters. Fields may not use them,
// otherwise they could not be filtered on.
var ReservedNames = []string{"page", "page_size"}

// Descriptor is a registered resource.
type Descriptor struct {
	// Name is the resource (and table) name, e.g. "users".
	Name string

	// Prefix is the normalized URL prefix, e.g. "/users".
	Prefix string

	Create schema.Schema
	Read   schema.Schema
	Update schema.Schema

	// Store pins the resource to a backend; empty means the configured default.
	Store string

	// Strict overrides the global unknown-field policy when non-nil.
	Strict *bool

	columns schema.Schema
}

// Spec is the input to New.
type Spec struct {
	Name   string
	Prefix string
	Create schema.Schema
	Read   schema.Schema
	// Update may be left empty; it is then derived from Create with every field optional.
	Update schema.Schema
	Store  string
	Strict *bool
}

// New validates spec and returns a Descriptor. Every failure is an *errs.ConfigError.
func New(spec Spec) (*Descriptor, error) {
	if spec.Name == "" {
		return nil, errs.NewConfigError("", "resource name is empty")
	}
	if !schema.IsIdentifier(spec.Name) {
		return nil, errs.NewConfigError(spec.Name, "name must match [a-z_][a-z0-9_]*")
	}

	prefix, err := NormalizePrefix(spec.Prefix)
	if err != nil {
		return nil, errs.NewConfigError(spec.Name, "%v", err)
	}

	if spec.Create.Len() == 0 {
		return nil, errs.NewConfigError(spec.Name, "create shape declares no fields")
	}
	if spec.Read.Len() == 0 {
		return nil, errs.NewConfigError(spec.Name, "read shape declares no fields")
	}

	switch spec.Store {
	case StoreDefault, StoreMemory, StoreSQLite, StorePostgres:
	default:
		return nil, errs.NewConfigError(spec.Name, "unknown store %q", spec.Store)
	}

	update := spec.Update
	if update.Len() == 0 {
		update = spec.Create.Optional()
	}

	columns, err := mergeColumns(spec.Read, spec.Create, update)
	if err != nil {
		return nil, errs.NewConfigError(spec.Name, "%v", err)
	}
	for _, name := range ReservedNames {
		if _, ok := columns.Field(name); ok {
			return nil, errs.NewConfigError(spec.Name, "field %q is reserved for pagination", name)
		}
	}

	return &Descriptor{
		Name:    spec.Name,
		Prefix:  prefix,
		Create:  spec.Create,
		Read:    spec.Read,
		Update:  update,
		Store:   spec.Store,
		Strict:  spec.Strict,
		columns: columns,
	}, nil
}

// Columns is the ordered union of the read, create and update fields: one
// column per field, plus the generated id the backends add.
func (d *Descriptor) Columns() schema.Schema {
	return d.columns
}

// IsStrict resolves the unknown-field policy for this resource.
func (d *Descriptor) IsStrict(fallback bool) bool {
	if d.Strict != nil {
		return *d.Strict
	}
	return fallback
}

// NormalizePrefix returns prefix with a leading slash and without trailing
// slashes: "users/" -> "/users".
func NormalizePrefix(prefix string) (string, error) {
	p := strings.TrimSpace(prefix)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "", fmt.Errorf("prefix %q addresses the root", prefix)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for _, seg := range strings.Split(p[1:], "/") {
		if seg == "" || strings.ContainsAny(seg, ":*{}?#") {
			return "", fmt.Errorf("prefix %q has an invalid segment", prefix)
		}
	}
	return p, nil
}

// Overlaps reports whether a and b (both normalized) would shadow each
// other: equal, or one is a path-segment prefix of the other.
func Overlaps(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

func mergeColumns(shapes ...schema.Schema) (schema.Schema, error) {
	var fields []schema.Field
	seen := make(map[string]int)

	for _, s := range shapes {
		for _, f := range s.Fields() {
			i, ok := seen[f.Name]
			if !ok {
				f.Required = false
				seen[f.Name] = len(fields)
				fields = append(fields, f)
				continue
			}
			if fields[i].Type != f.Type {
				return schema.Schema{}, fmt.Errorf("field %q is declared as %s and %s", f.Name, fields[i].Type, f.Type)
			}
			fields[i].Unique = fields[i].Unique || f.Unique
		}
	}
	return schema.New(fields...)
}
