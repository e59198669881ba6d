package main

import (
	"context"
	"fmt"

	"github.com/deppfellow/crudrouter/internal/config"
	"github.com/deppfellow/crudrouter/internal/database"
	"github.com/deppfellow/crudrouter/internal/handler"
	"github.com/deppfellow/crudrouter/internal/logger"
	"github.com/deppfellow/crudrouter/internal/repository"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/router"
	"github.com/deppfellow/crudrouter/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// loadConfig reads the configuration and applies the command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if resourcesFile != "" {
		cfg.Resources.File = resourcesFile
	}
	return cfg, nil
}

// loadDescriptors reads resources.file, or returns the built-in resources
// when none is configured.
func loadDescriptors(cfg config.ResourcesConfig) ([]*resource.Descriptor, error) {
	if cfg.File == "" {
		return resource.Defaults(), nil
	}
	descs, err := resource.LoadFile(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load resources from %s: %w", cfg.File, err)
	}
	return descs, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, *logger.LoggerService) {
	loggerService := logger.NewLoggerService(cfg.Observability)
	return logger.NewLoggerWithService(cfg.Observability, loggerService), loggerService
}

// migrate creates the tables of descs on the server's database. SQLite runs
// on the already open handle, so an in-memory database keeps its tables.
func migrate(ctx context.Context, s *server.Server, descs []*resource.Descriptor) error {
	migrations, err := repository.Migrations(s.DB.Driver, descs)
	if err != nil {
		return err
	}
	if s.DB.SQL != nil {
		return database.ApplySQLite(ctx, s.Logger, s.DB.SQL, migrations)
	}
	return database.Migrate(ctx, s.Logger, s.Config, migrations)
}

// buildRouter migrates when database.auto_migrate is set, registers descs and
// builds the router. On failure it closes the server's database and Redis.
func buildRouter(ctx context.Context, srv *server.Server, descs []*resource.Descriptor) (_ *echo.Echo, err error) {
	defer func() {
		if err == nil {
			return
		}
		if cerr := srv.Close(); cerr != nil {
			srv.Logger.Warn().Err(cerr).Msg("failed to release the server after a startup error")
		}
	}()

	if srv.Config.Database.AutoMigrate {
		if err := migrate(ctx, srv, descs); err != nil {
			srv.Logger.Error().Err(err).Msg("failed to migrate database")
			return nil, err
		}
	}

	repos := repository.NewRepositories(srv)
	registry := router.NewRegistry(handler.NewHandler(srv))
	for _, desc := range descs {
		adapter, err := repos.For(desc)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(desc, adapter); err != nil {
			return nil, err
		}
		srv.Logger.Info().
			Str("resource", desc.Name).
			Str("prefix", desc.Prefix).
			Str("store", adapter.Store()).
			Msg("registered resource")
	}

	return router.NewRouter(srv, handler.NewHandlers(srv, registry), registry)
}
