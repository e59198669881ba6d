package router

import (
	"github.com/deppfellow/crudrouter/internal/handler"
	"github.com/deppfellow/crudrouter/internal/metrics"
	"github.com/labstack/echo/v4"
)

// registerSystemRoutes registers the routes that are not resources: health,
// metrics and the API documentation.
func registerSystemRoutes(r *echo.Echo, h *handler.Handlers) {
	r.GET("/status", h.Health.CheckHealth)
	r.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	r.GET("/openapi.json", h.OpenAPI.ServeOpenAPIDocument)
	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)
}
