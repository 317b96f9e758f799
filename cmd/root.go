package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skyline-data/apisync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "apisync",
	Short: "Config-driven REST API to Postgres ETL",
	Long:  "Extracts paginated JSON from REST APIs described in YAML, validates and transforms it into typed rows, and loads it idempotently into Postgres with a run ledger.",
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
