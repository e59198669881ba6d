package handler

import (
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"github.com/deppfellow/crudrouter/internal/config"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/schema"
	"github.com/deppfellow/crudrouter/internal/server"
	"github.com/labstack/echo/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed static/openapi.html
var openAPIPage string

type OpenAPIHandler struct {
	Handler
	catalog Catalog
}

func NewOpenAPIHandler(s *server.Server, catalog Catalog) *OpenAPIHandler {
	return &OpenAPIHandler{
		Handler: NewHandler(s),
		catalog: catalog,
	}
}

// ServeOpenAPIUI serves the Swagger UI page, which loads /openapi.json.
func (h *OpenAPIHandler) ServeOpenAPIUI(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-cache")
	if err := c.HTML(http.StatusOK, openAPIPage); err != nil {
		return fmt.Errorf("failed to write HTML response: %w", err)
	}
	return nil
}

// ServeOpenAPIDocument serves the document generated from the registered
// resources.
func (h *OpenAPIHandler) ServeOpenAPIDocument(c echo.Context) error {
	var descs []*resource.Descriptor
	if h.catalog != nil {
		descs = h.catalog.Descriptors()
	}
	return c.JSON(http.StatusOK, BuildOpenAPI(descs, h.resources()))
}

// BuildOpenAPI renders an OpenAPI 3.0 document for descs.
func BuildOpenAPI(descs []*resource.Descriptor, paging config.ResourcesConfig) map[string]any {
	schemas := map[string]any{
		"Error": errorSchema(),
	}
	paths := map[string]any{}

	for _, d := range descs {
		name := schemaName(d.Name)
		schemas[name+"Create"] = objectSchema(d.Create, false)
		schemas[name+"Update"] = objectSchema(d.Update, false)
		schemas[name] = objectSchema(d.Read, true)
		schemas[name+"List"] = map[string]any{
			"type":     "object",
			"required": []string{"items", "total", "page", "page_size"},
			"properties": map[string]any{
				"items":     map[string]any{"type": "array", "items": ref(name)},
				"total":     map[string]any{"type": "integer", "format": "int64"},
				"page":      map[string]any{"type": "integer"},
				"page_size": map[string]any{"type": "integer"},
			},
		}

		tags := []string{d.Name}
		idParam := map[string]any{
			"name": "id", "in": "path", "required": true,
			"schema": map[string]any{"type": "integer", "format": "int64", "minimum": 1},
		}

		paths[d.Prefix] = map[string]any{
			"get": map[string]any{
				"tags":        tags,
				"operationId": "list_" + d.Name,
				"parameters":  listParameters(d, paging),
				"responses": map[string]any{
					"200": jsonResponse("A page of "+d.Name, ref(name+"List")),
					"422": errorResponse("Invalid query"),
				},
			},
			"post": map[string]any{
				"tags":        tags,
				"operationId": "create_" + d.Name,
				"requestBody": jsonBody(ref(name + "Create")),
				"responses": map[string]any{
					"201": jsonResponse("Created", ref(name)),
					"409": errorResponse("Conflicts with an existing record"),
					"422": errorResponse("Invalid payload"),
				},
			},
		}

		update := func(op string) map[string]any {
			return map[string]any{
				"tags":        tags,
				"operationId": op + "_" + d.Name,
				"parameters":  []any{idParam},
				"requestBody": jsonBody(ref(name + "Update")),
				"responses": map[string]any{
					"200": jsonResponse("Updated", ref(name)),
					"404": errorResponse("Not found"),
					"409": errorResponse("Conflicts with an existing record"),
					"422": errorResponse("Invalid payload"),
				},
			}
		}

		paths[d.Prefix+"/{id}"] = map[string]any{
			"get": map[string]any{
				"tags":        tags,
				"operationId": "get_" + d.Name,
				"parameters":  []any{idParam},
				"responses": map[string]any{
					"200": jsonResponse("Found", ref(name)),
					"404": errorResponse("Not found"),
				},
			},
			"put":   update("replace"),
			"patch": update("update"),
			"delete": map[string]any{
				"tags":        tags,
				"operationId": "delete_" + d.Name,
				"parameters":  []any{idParam},
				"responses": map[string]any{
					"204": map[string]any{"description": "Deleted"},
					"404": errorResponse("Not found"),
				},
			},
		}
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "crudrouter",
			"version": "1.0.0",
		},
		"paths":      paths,
		"components": map[string]any{"schemas": schemas},
	}
}

func schemaName(name string) string {
	return strings.ReplaceAll(cases.Title(language.English).String(strings.ReplaceAll(name, "_", " ")), " ", "")
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func jsonBody(s map[string]any) map[string]any {
	return map[string]any{
		"required": true,
		"content":  map[string]any{"application/json": map[string]any{"schema": s}},
	}
}

func jsonResponse(description string, s map[string]any) map[string]any {
	return map[string]any{
		"description": description,
		"content":     map[string]any{"application/json": map[string]any{"schema": s}},
	}
}

func errorResponse(description string) map[string]any {
	return jsonResponse(description, ref("Error"))
}

func fieldSchema(f schema.Field) map[string]any {
	switch f.Type {
	case schema.TypeInteger:
		return map[string]any{"type": "integer", "format": "int64"}
	case schema.TypeNumber:
		return map[string]any{"type": "number", "format": "double"}
	case schema.TypeBoolean:
		return map[string]any{"type": "boolean"}
	case schema.TypeTimestamp:
		return map[string]any{"type": "string", "format": "date-time"}
	}
	return map[string]any{"type": "string"}
}

func objectSchema(s schema.Schema, withID bool) map[string]any {
	props := map[string]any{}
	required := []string{}
	if withID {
		props[schema.IDField] = map[string]any{"type": "integer", "format": "int64", "readOnly": true}
		required = append(required, schema.IDField)
	}
	for _, f := range s.Fields() {
		fs := fieldSchema(f)
		if f.Rules != "" {
			fs["x-rules"] = f.Rules
		}
		if !f.Required {
			fs["nullable"] = true
		}
		props[f.Name] = fs
		if f.Required && !withID {
			required = append(required, f.Name)
		}
	}

	out := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func listParameters(d *resource.Descriptor, paging config.ResourcesConfig) []any {
	params := []any{
		map[string]any{
			"name": "page", "in": "query",
			"schema": map[string]any{"type": "integer", "minimum": 1, "default": 1},
		},
		map[string]any{
			"name": "page_size", "in": "query",
			"schema": map[string]any{
				"type": "integer", "minimum": 1,
				"maximum": paging.MaxPageSize, "default": paging.DefaultPageSize,
			},
		},
	}
	for _, f := range d.Read.Fields() {
		params = append(params, map[string]any{
			"name": f.Name, "in": "query",
			"description": "Only records whose " + f.Name + " equals this value.",
			"schema":      fieldSchema(f),
		})
	}
	return params
}

func errorSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"code", "message", "status"},
		"properties": map[string]any{
			"code":     map[string]any{"type": "string"},
			"message":  map[string]any{"type": "string"},
			"status":   map[string]any{"type": "integer"},
			"override": map[string]any{"type": "boolean"},
			"errors": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"field": map[string]any{"type": "string"},
						"error": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}
