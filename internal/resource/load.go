package resource

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/deppfellow/crudrouter/internal/schema"
	"gopkg.in/yaml.v3"
)

// fileSpec is the YAML layout of a descriptor file:
//
//	resources:
//	  - name: users
//	    prefix: /users/
//	    create:
//	      - {name: name, type: string, required: true}
//	    read:
//	      - {name: name, type: string}
type fileSpec struct {
	Resources []resourceSpec `yaml:"resources"`
}

type resourceSpec struct {
	Name   string         `yaml:"name"`
	Prefix string         `yaml:"prefix"`
	Store  string         `yaml:"store"`
	Strict *bool          `yaml:"strict"`
	Create []schema.Field `yaml:"create"`
	Read   []schema.Field `yaml:"read"`
	Update []schema.Field `yaml:"update"`
}

// LoadFile reads descriptors from a YAML file.
func LoadFile(path string) ([]*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open resource file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load parses descriptors from YAML. Unknown keys are rejected so typos in
// a descriptor file fail at startup.
func Load(r io.Reader) ([]*Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read resource file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var spec fileSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, errs.NewConfigError("", "parse resource file: %v", err)
	}
	if len(spec.Resources) == 0 {
		return nil, errs.NewConfigError("", "resource file declares no resources")
	}

	descs := make([]*Descriptor, 0, len(spec.Resources))
	for _, rs := range spec.Resources {
		d, err := rs.build()
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func (rs resourceSpec) build() (*Descriptor, error) {
	shape := func(kind string, fields []schema.Field) (schema.Schema, error) {
		s, err := schema.New(fields...)
		if err != nil {
			return schema.Schema{}, errs.NewConfigError(rs.Name, "%s shape: %v", kind, err)
		}
		return s, nil
	}

	create, err := shape("create", rs.Create)
	if err != nil {
		return nil, err
	}
	read, err := shape("read", rs.Read)
	if err != nil {
		return nil, err
	}
	update, err := shape("update", rs.Update)
	if err != nil {
		return nil, err
	}

	return New(Spec{
		Name:   rs.Name,
		Prefix: rs.Prefix,
		Create: create,
		Read:   read,
		Update: update,
		Store:  rs.Store,
		Strict: rs.Strict,
	})
}
