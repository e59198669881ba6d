package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/deppfellow/crudrouter/internal/handler"
	"github.com/deppfellow/crudrouter/internal/repository"
	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/router"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the routes synthesized for every resource",
	Long: `Print the routes synthesized for every resource without connecting
to a database. Registration runs as it does on serve, so a descriptor file
with colliding names or prefixes fails here too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		descs, err := loadDescriptors(cfg.Resources)
		if err != nil {
			return err
		}
		return printRoutes(cmd.OutOrStdout(), descs)
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

// printRoutes registers descs against memory adapters and writes one line
// per route.
func printRoutes(w io.Writer, descs []*resource.Descriptor) error {
	registry := router.NewRegistry(handler.NewHandler(nil))
	for _, desc := range descs {
		if err := registry.Register(desc, repository.NewMemory(desc)); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tSTORE\tMETHOD\tPATH\tNAME")
	for i, set := range registry.Routes() {
		store := descs[i].Store
		if store == resource.StoreDefault {
			store = "default"
		}
		for _, route := range set.Routes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", set.Resource, store, route.Method, route.Path, route.Name)
		}
	}
	return tw.Flush()
}
