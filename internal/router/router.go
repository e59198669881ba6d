// Package router builds the echo router: global middleware, system routes
// and the routes synthesized for every registered resource.
package router

import (
	"github.com/deppfellow/crudrouter/internal/handler"
	"github.com/deppfellow/crudrouter/internal/metrics"
	"github.com/deppfellow/crudrouter/internal/middleware"
	"github.com/deppfellow/crudrouter/internal/server"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// NewRouter returns the echo router with every registered resource mounted.
func NewRouter(s *server.Server, h *handler.Handlers, registry *Registry) (*echo.Echo, error) {
	middlewares := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	// "/users/" and "/users" are the same route.
	router.Pre(echoMiddleware.RemoveTrailingSlash())

	router.Use(
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.Recover(),
		middlewares.Global.CORS(),
		middlewares.Global.Secure(),
		middlewares.Global.BodyLimit(),
		metrics.Middleware(middleware.StatusOf),
	)

	if limiter := middlewares.RateLimit.Limiter(); limiter != nil {
		router.Use(limiter)
	}

	registerSystemRoutes(router, h)

	if err := registry.Mount(router); err != nil {
		return nil, err
	}

	return router, nil
}
