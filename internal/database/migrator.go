package database

import (
	"context"
	"fmt"

	"github.com/deppfellow/crudrouter/internal/config"
	"github.com/jackc/pgx/v5"
	tern "github.com/jackc/tern/v2/migrate"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// VersionTable records the applied Postgres migrations.
const VersionTable = "schema_version"

// Migration creates the table of one resource.
type Migration struct {
	Name string
	SQL  string
}

// Migrate applies migrations to the configured database.
//
// Postgres migrations run through tern and are versioned in VersionTable,
// in the order given: new resources must be appended, never inserted.
// SQLite statements are idempotent (CREATE TABLE IF NOT EXISTS) and simply
// run in one transaction. The memory driver needs none.
func Migrate(ctx context.Context, logger *zerolog.Logger, cfg *config.Config, migrations []Migration) error {
	switch cfg.Database.Driver {
	case DriverPostgres:
		return migratePostgres(ctx, logger, cfg, migrations)
	case DriverSQLite:
		db, err := OpenSQLite(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		return ApplySQLite(ctx, logger, db, migrations)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("no migrations needed")
	return nil
}

func migratePostgres(ctx context.Context, logger *zerolog.Logger, cfg *config.Config, migrations []Migration) error {
	// A single connection is enough for a one-off action.
	conn, err := pgx.Connect(ctx, PostgresDSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	m, err := tern.NewMigrator(ctx, conn, VersionTable)
	if err != nil {
		return fmt.Errorf("constructing database migrator: %w", err)
	}

	for _, mig := range migrations {
		m.AppendMigration(mig.Name, mig.SQL, "")
	}

	from, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("retrieving current database migration version: %w", err)
	}

	if err := m.Migrate(ctx); err != nil {
		return err
	}

	if from == int32(len(m.Migrations)) {
		logger.Info().Msgf("database schema up to date, version %d", len(m.Migrations))
	} else {
		logger.Info().Msgf("migrated database schema, from %d to %d", from, len(m.Migrations))
	}
	return nil
}

// ApplySQLite runs migrations on db in one transaction.
func ApplySQLite(ctx context.Context, logger *zerolog.Logger, db *sqlx.DB, migrations []Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting migration transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, mig := range migrations {
		if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
			return fmt.Errorf("applying migration %s: %w", mig.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migrations: %w", err)
	}

	logger.Info().Int("tables", len(migrations)).Msg("database schema up to date")
	return nil
}
