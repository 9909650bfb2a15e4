package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/btg-sync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "btg-sync",
	Short: "BTG reporting API connector",
	Long:  "Submits report jobs to the BTG reporting API, polls tickets to completion, and normalizes XML/ZIP/JSON/CSV results into NDJSON records.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
