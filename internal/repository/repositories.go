package repository

import (
	"sync"

	"github.com/deppfellow/crudrouter/internal/database"
	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/server"
)

// Repositories hands out one adapter per resource.
//
// A resource uses the configured database driver unless its descriptor pins
// a store. The memory store is always available; a pinned SQL store must
// match the configured driver.
type Repositories struct {
	server *server.Server

	mu       sync.Mutex
	adapters map[string]Adapter
}

// NewRepositories constructs the repository container.
func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		server:   s,
		adapters: make(map[string]Adapter),
	}
}

// For returns the adapter of desc, creating it on first use.
func (r *Repositories) For(desc *resource.Descriptor) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[desc.Name]; ok {
		return a, nil
	}

	a, err := r.open(desc)
	if err != nil {
		return nil, err
	}
	r.adapters[desc.Name] = a
	return a, nil
}

func (r *Repositories) open(desc *resource.Descriptor) (Adapter, error) {
	var db *database.Database
	driver := resource.StoreMemory
	if r.server != nil && r.server.DB != nil {
		db = r.server.DB
		driver = db.Driver
	}

	store := desc.Store
	if store == resource.StoreDefault {
		store = driver
	}

	switch {
	case store == resource.StoreMemory:
		return NewMemory(desc), nil
	case store != driver:
		return nil, errs.NewConfigError(desc.Name, "store %q is not available, database.driver is %q", store, driver)
	case store == resource.StorePostgres && db.Pool != nil:
		return NewPostgres(db.Pool, desc), nil
	case store == resource.StoreSQLite && db.SQL != nil:
		return NewSQLite(db.SQL, desc), nil
	}
	return nil, errs.NewConfigError(desc.Name, "store %q has no open connection", store)
}

// Migrations returns the table definitions of every descriptor stored in a
// SQL backend of the given driver, one migration per resource, in order.
// Memory-pinned descriptors are skipped.
func Migrations(driver string, descs []*resource.Descriptor) ([]database.Migration, error) {
	var out []database.Migration
	for _, desc := range descs {
		store := desc.Store
		if store == resource.StoreDefault {
			store = driver
		}
		if store == resource.StoreMemory {
			continue
		}
		if store != driver {
			return nil, errs.NewConfigError(desc.Name, "store %q is not available, database.driver is %q", store, driver)
		}

		ddl, err := CreateTableSQL(store, desc)
		if err != nil {
			return nil, errs.NewConfigError(desc.Name, "%v", err)
		}
		out = append(out, database.Migration{Name: "create_" + desc.Name, SQL: ddl})
	}
	return out, nil
}
