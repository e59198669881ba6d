package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deppfellow/crudrouter/internal/config"
	"github.com/deppfellow/crudrouter/internal/repository"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCatalog struct {
	descs    []*resource.Descriptor
	adapters []repository.Adapter
}

func (c staticCatalog) Descriptors() []*resource.Descriptor { return c.descs }
func (c staticCatalog) Adapters() []repository.Adapter      { return c.adapters }

func serve(h echo.HandlerFunc, path string) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET(path, h)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestCheckHealth(t *testing.T) {
	desc := resource.Users()
	mem := repository.NewMemory(desc)
	h := NewHandlers(newTestServer(nil), staticCatalog{
		descs:    []*resource.Descriptor{desc},
		adapters: []repository.Adapter{mem},
	})

	rec := serve(h.Health.CheckHealth, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string                       `json:"status"`
		Checks map[string]map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["store"]["status"])
	assert.NotContains(t, body.Checks, "redis")

	mem.Close()

	rec = serve(h.Health.CheckHealth, "/status")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "unhealthy", body.Checks["store"]["status"])
}

func TestCheckHealthSkipsDisabledChecks(t *testing.T) {
	cfg := config.Default()
	cfg.Observability.HealthChecks.Checks = []string{"redis"}

	mem := repository.NewMemory(resource.Users())
	mem.Close()
	h := NewHealthHandler(newTestServer(cfg), staticCatalog{adapters: []repository.Adapter{mem}})

	rec := serve(h.CheckHealth, "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildOpenAPI(t *testing.T) {
	doc := BuildOpenAPI([]*resource.Descriptor{resource.Users()}, config.Default().Resources)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var parsed struct {
		OpenAPI string                               `json:"openapi"`
		Paths   map[string]map[string]map[string]any `json:"paths"`
		Comps   struct {
			Schemas map[string]struct {
				Required   []string                  `json:"required"`
				Properties map[string]map[string]any `json:"properties"`
			} `json:"schemas"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))

	assert.Equal(t, "3.0.3", parsed.OpenAPI)
	require.Contains(t, parsed.Paths, "/users")
	require.Contains(t, parsed.Paths, "/users/{id}")
	assert.Contains(t, parsed.Paths["/users"], "get")
	assert.Contains(t, parsed.Paths["/users"], "post")
	for _, method := range []string{"get", "put", "patch", "delete"} {
		assert.Contains(t, parsed.Paths["/users/{id}"], method)
	}

	create := parsed.Comps.Schemas["UsersCreate"]
	assert.Equal(t, []string{"name"}, create.Required)
	assert.Equal(t, "email", create.Properties["email"]["x-rules"])

	read := parsed.Comps.Schemas["Users"]
	assert.Equal(t, []string{"id"}, read.Required)
	assert.Contains(t, read.Properties, "id")

	assert.Empty(t, parsed.Comps.Schemas["UsersUpdate"].Required)
	assert.Contains(t, parsed.Comps.Schemas, "UsersList")
	assert.Contains(t, parsed.Comps.Schemas, "Error")
}

func TestServeOpenAPI(t *testing.T) {
	h := NewOpenAPIHandler(newTestServer(nil), staticCatalog{descs: resource.Defaults()})

	rec := serve(h.ServeOpenAPIDocument, "/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/memory-users/{id}"`)

	rec = serve(h.ServeOpenAPIUI, "/docs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/openapi.json")
}

func TestSchemaName(t *testing.T) {
	assert.Equal(t, "Users", schemaName("users"))
	assert.Equal(t, "MemoryUsers", schemaName("memory_users"))
}
