package handler

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/deppfellow/crudrouter/internal/middleware"
	"github.com/deppfellow/crudrouter/internal/server"
	"github.com/labstack/echo/v4"
)

type HealthHandler struct {
	Handler
	catalog Catalog
}

func NewHealthHandler(s *server.Server, catalog Catalog) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
		catalog: catalog,
	}
}

func (h *HealthHandler) enabled(check string) bool {
	obs := h.server.Config.Observability
	if obs == nil {
		return true
	}
	return obs.HealthChecks.Enabled && slices.Contains(obs.HealthChecks.Checks, check)
}

func (h *HealthHandler) timeout() time.Duration {
	if obs := h.server.Config.Observability; obs != nil && obs.HealthChecks.Timeout > 0 {
		return obs.HealthChecks.Timeout
	}
	return 5 * time.Second
}

func (h *HealthHandler) recordFailure(check string, elapsed time.Duration, err error) {
	app := h.server.LoggerService.GetApplication()
	if app == nil {
		return
	}
	app.RecordCustomEvent("HealthCheckError", map[string]any{
		"check_type":       check,
		"operation":        "health_check",
		"error_type":       check + "_unhealthy",
		"response_time_ms": elapsed.Milliseconds(),
		"error_message":    err.Error(),
	})
}

// pingStore pings the database and every resource adapter; the memory
// adapters have no shared database to answer for them.
func (h *HealthHandler) pingStore(ctx context.Context) error {
	if h.server.DB != nil {
		if err := h.server.DB.Ping(ctx); err != nil {
			return err
		}
	}
	if h.catalog == nil {
		return nil
	}
	for _, a := range h.catalog.Adapters() {
		if err := a.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CheckHealth reports the state of the store and, when configured, Redis.
// It answers 503 when a check fails.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()

	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	checks := map[string]any{}
	response := map[string]any{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"environment": h.server.Config.Primary.Env,
		"checks":      checks,
	}
	isHealthy := true

	run := func(name string, ping func(ctx context.Context) error) {
		ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout())
		defer cancel()

		checkStart := time.Now()
		err := ping(ctx)
		elapsed := time.Since(checkStart)

		if err != nil {
			isHealthy = false
			checks[name] = map[string]any{
				"status":        "unhealthy",
				"response_time": elapsed.String(),
				"error":         err.Error(),
			}
			logger.Error().Err(err).Dur("response_time", elapsed).Msgf("%s health check failed", name)
			h.recordFailure(name, elapsed, err)
			return
		}

		checks[name] = map[string]any{
			"status":        "healthy",
			"response_time": elapsed.String(),
		}
		logger.Debug().Dur("response_time", elapsed).Msgf("%s health check passed", name)
	}

	if h.enabled("store") {
		run("store", h.pingStore)
	}

	if h.server.Redis != nil && h.enabled("redis") {
		run("redis", func(ctx context.Context) error {
			return h.server.Redis.Ping(ctx).Err()
		})
	}

	if !isHealthy {
		response["status"] = "unhealthy"
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("health check failed")
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	if err := c.JSON(http.StatusOK, response); err != nil {
		logger.Error().Err(err).Msg("failed to write JSON response")
		return fmt.Errorf("failed to write JSON response: %w", err)
	}

	return nil
}
