package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var resourcesFile string

var rootCmd = &cobra.Command{
	Use:   "crudrouter",
	Short: "Schema-driven REST resource server",
	Long: `crudrouter mounts CRUD routes for resources described by schemas.

Configuration is read from CRUDROUTER_* environment variables (and a .env
file when present). Nested keys use a double underscore:

  CRUDROUTER_SERVER__PORT=8080
  CRUDROUTER_DATABASE__DRIVER=postgres
  CRUDROUTER_RESOURCES__FILE=resources.yaml

Commands:
  crudrouter serve     # Start the HTTP server
  crudrouter migrate   # Create the resource tables
  crudrouter routes    # Print the synthesized routes
  crudrouter openapi   # Print the OpenAPI document`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&resourcesFile, "resources", "r", "", "resource descriptor file (overrides resources.file)")
}
