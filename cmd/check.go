package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/btg-sync/internal/connector"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify credentials for every enabled category",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.BaseURL == "" {
			return fmt.Errorf("missing base_url in config")
		}

		clients := connector.Clients(cfg)

		var failures []string
		for _, category := range cfg.EnabledCategories() {
			if _, err := clients[category].Tokens().Get(cmd.Context()); err != nil {
				zap.L().Error("connection check failed",
					zap.String("category", category),
					zap.Error(err),
				)
				failures = append(failures, fmt.Sprintf("%s: %v", strings.ToUpper(category), err))
				continue
			}
			zap.L().Info("connection ok", zap.String("category", category))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: connection successful\n", strings.ToUpper(category))
		}

		if len(failures) > 0 {
			return fmt.Errorf("connection check failed: %s", strings.Join(failures, "; "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
