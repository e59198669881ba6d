package main

import (
	"github.com/deppfellow/crudrouter/internal/handler"
	"github.com/deppfellow/crudrouter/internal/lib/utils"
	"github.com/spf13/cobra"
)

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Print the OpenAPI document of the configured resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		descs, err := loadDescriptors(cfg.Resources)
		if err != nil {
			return err
		}
		return utils.WriteJSON(cmd.OutOrStdout(), handler.BuildOpenAPI(descs, cfg.Resources))
	},
}

func init() {
	rootCmd.AddCommand(openapiCmd)
}
