package middleware

import (
	"context"

	"github.com/deppfellow/crudrouter/internal/logger"
	"github.com/deppfellow/crudrouter/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	// LoggerKey stores the request-scoped logger in the echo context.
	LoggerKey = "logger"

	// ResourceKey stores the name of the resource a synthesized route serves.
	ResourceKey = "resource"

	loggerCtxKey contextKey = "logger"
)

// ContextEnhancer builds a request-scoped logger carrying the request id,
// method, route, client ip and, when present, the New Relic trace context.
type ContextEnhancer struct {
	server *server.Server
}

func NewContextEnhancer(s *server.Server) *ContextEnhancer {
	return &ContextEnhancer{server: s}
}

// EnhanceContext stores the logger in the echo context and in the request
// context, so code that only sees a context.Context can log with it too.
func (ce *ContextEnhancer) EnhanceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			contextLogger := ce.server.Logger.With().
				Str("request_id", GetRequestID(c)).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("ip", c.RealIP()).
				Logger()

			if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
				contextLogger = logger.WithTraceContext(contextLogger, txn)
			}

			c.Set(LoggerKey, &contextLogger)
			ctx := context.WithValue(c.Request().Context(), loggerCtxKey, &contextLogger)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// WithResource tags the requests of a synthesized route with its resource
// name and adds it to the request-scoped logger. Route middleware runs after
// the global chain, so the enhanced logger is already in place.
func WithResource(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ResourceKey, name)
			logger := GetLogger(c).With().Str("resource", name).Logger()
			c.Set(LoggerKey, &logger)
			return next(c)
		}
	}
}

// GetResource returns the resource name of the matched route, if any.
func GetResource(c echo.Context) string {
	if name, ok := c.Get(ResourceKey).(string); ok {
		return name
	}
	return ""
}

// GetLogger returns the request-scoped logger, or a no-op logger when
// EnhanceContext did not run.
func GetLogger(c echo.Context) *zerolog.Logger {
	if logger, ok := c.Get(LoggerKey).(*zerolog.Logger); ok {
		return logger
	}
	logger := zerolog.Nop()
	return &logger
}

// LoggerFromContext is GetLogger for code that only has a context.Context.
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	if logger, ok := ctx.Value(loggerCtxKey).(*zerolog.Logger); ok {
		return logger
	}
	logger := zerolog.Nop()
	return &logger
}
