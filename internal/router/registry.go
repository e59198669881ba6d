package router

import (
	"fmt"
	"strings"
	"sync"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/deppfellow/crudrouter/internal/handler"
	"github.com/deppfellow/crudrouter/internal/middleware"
	"github.com/deppfellow/crudrouter/internal/repository"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/labstack/echo/v4"
)

// Surface is what resources are mounted on: *echo.Echo or *echo.Group.
type Surface interface {
	Add(method, path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) *echo.Route
}

type entry struct {
	desc    *resource.Descriptor
	adapter repository.Adapter
	routes  handler.RouteSet
	mounted bool
}

// Registry collects the resources of the application and mounts their
// synthesized routes. Registration happens at startup; collisions are
// reported as *errs.ConfigError.
type Registry struct {
	handler handler.Handler

	mu      sync.RWMutex
	entries []*entry
}

func NewRegistry(h handler.Handler) *Registry {
	return &Registry{handler: h}
}

// Register adds desc, persisted through adapter, and synthesizes its routes.
// It rejects a duplicate name, and a prefix equal to or overlapping with the
// prefix of a registered resource.
func (r *Registry) Register(desc *resource.Descriptor, adapter repository.Adapter) error {
	if desc == nil {
		return errs.NewConfigError("", "descriptor is nil")
	}
	if adapter == nil {
		return errs.NewConfigError(desc.Name, "no persistence adapter")
	}
	if desc.Name == "" || desc.Prefix == "" {
		return errs.NewConfigError(desc.Name, "descriptor was not built with resource.New")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		switch {
		case e.desc.Name == desc.Name:
			return errs.NewConfigError(desc.Name, "name is already registered")
		case e.desc.Prefix == desc.Prefix:
			return errs.NewConfigError(desc.Name, "prefix %s is already used by %q", desc.Prefix, e.desc.Name)
		case resource.Overlaps(e.desc.Prefix, desc.Prefix):
			return errs.NewConfigError(desc.Name, "prefix %s overlaps %s of %q", desc.Prefix, e.desc.Prefix, e.desc.Name)
		}
	}

	r.entries = append(r.entries, &entry{
		desc:    desc,
		adapter: adapter,
		routes:  handler.Synthesize(r.handler, desc, adapter),
	})
	return nil
}

// Mount attaches the routes of every resource not mounted yet to surface.
// Resources already mounted are skipped. When every registered resource is
// already mounted, Mount returns errs.ErrAlreadyMounted and attaches nothing.
func (r *Registry) Mount(surface Surface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*entry
	for _, e := range r.entries {
		if !e.mounted {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 && len(r.entries) > 0 {
		names := make([]string, len(r.entries))
		for i, e := range r.entries {
			names[i] = e.desc.Name
		}
		return fmt.Errorf("%s: %w", strings.Join(names, ", "), errs.ErrAlreadyMounted)
	}

	for _, e := range pending {
		tag := middleware.WithResource(e.desc.Name)
		for _, route := range e.routes.Routes {
			rt := surface.Add(route.Method, route.Path, route.Handler, tag)
			rt.Name = e.desc.Name + "." + route.Name
		}
		e.mounted = true
	}
	return nil
}

// Descriptors returns the registered descriptors in registration order.
func (r *Registry) Descriptors() []*resource.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*resource.Descriptor, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.desc
	}
	return out
}

// Adapters returns the adapters of the registered resources.
func (r *Registry) Adapters() []repository.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.Adapter, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.adapter
	}
	return out
}

// Routes returns the synthesized route sets, mounted or not.
func (r *Registry) Routes() []handler.RouteSet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]handler.RouteSet, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.routes
	}
	return out
}
