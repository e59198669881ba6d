package handler

import (
	"github.com/deppfellow/crudrouter/internal/repository"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/server"
)

// Catalog lists the registered resources and their adapters.
type Catalog interface {
	Descriptors() []*resource.Descriptor
	Adapters() []repository.Adapter
}

// Handlers groups the handlers of the system routes. Resource routes are
// synthesized separately, see Synthesize.
type Handlers struct {
	Handler Handler
	Health  *HealthHandler
	OpenAPI *OpenAPIHandler
}

func NewHandlers(s *server.Server, catalog Catalog) *Handlers {
	return &Handlers{
		Handler: NewHandler(s),
		Health:  NewHealthHandler(s, catalog),
		OpenAPI: NewOpenAPIHandler(s, catalog),
	}
}
