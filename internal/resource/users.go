package resource

import "github.com/deppfellow/crudrouter/internal/schema"

// Defaults returns the built-in resources, registered when no descriptor
// file is configured: users on the configured store and memory_users kept
// in process memory.
func Defaults() []*Descriptor {
	return []*Descriptor{Users(), MemoryUsers()}
}

// Users returns the built-in "users" resource mounted at /users/.
func Users() *Descriptor {
	return mustUsers("users", "/users/", StoreDefault)
}

// MemoryUsers is Users pinned to the memory store, mounted at /memory-users/.
func MemoryUsers() *Descriptor {
	return mustUsers("memory_users", "/memory-users/", StoreMemory)
}

func mustUsers(name, prefix, store string) *Descriptor {
	create := schema.MustNew(
		schema.Field{Name: "name", Type: schema.TypeString, Required: true, Rules: "min=1,max=255"},
		schema.Field{Name: "email", Type: schema.TypeString, Unique: true, Rules: "email"},
	)
	read := schema.MustNew(
		schema.Field{Name: "name", Type: schema.TypeString},
		schema.Field{Name: "email", Type: schema.TypeString},
	)

	d, err := New(Spec{
		Name:   name,
		Prefix: prefix,
		Create: create,
		Read:   read,
		Store:  store,
	})
	if err != nil {
		panic(err)
	}
	return d
}
