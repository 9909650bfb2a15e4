package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/btg-sync/internal/connector"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the effective streams (category × endpoint)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := connector.Catalog(cfg)
		if err != nil {
			return err
		}

		streams := connector.Streams(cfg, cat)
		if len(streams) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no streams configured")
			return nil
		}

		for _, s := range streams {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s %s", s.Name, s.Route.SubmitMethod, s.Route.SubmitPath)
			if len(s.Route.Parameters) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\tparams=%v", s.Route.Parameters)
			}
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
}
