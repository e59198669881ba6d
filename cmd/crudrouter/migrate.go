package main

import (
	"github.com/deppfellow/crudrouter/internal/server"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the resource tables",
	Long: `Create one table per resource on the configured database.

Postgres migrations are versioned in the schema_version table; resources
must be appended to the descriptor file, never inserted before existing
ones. SQLite tables are created when missing. Resources kept in memory
need no table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log, loggerService := newLogger(cfg)
		defer loggerService.Shutdown()

		descs, err := loadDescriptors(cfg.Resources)
		if err != nil {
			return err
		}

		srv, err := server.New(cfg, &log, loggerService)
		if err != nil {
			return err
		}
		defer srv.Close()

		return migrate(cmd.Context(), srv, descs)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
