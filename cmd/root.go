package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/deal-briefing/internal/config"
	"github.com/sells-group/deal-briefing/internal/metrics"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "deal-briefing",
	Short: "Prioritized briefing of open Pipedrive deals",
	Long:  "Pulls open deals from Pipedrive, enriches each with contacts, activities and Gmail history, and asks Claude to rank them by health and urgency.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables win.
		_ = godotenv.Load()

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return metrics.Register(prometheus.DefaultRegisterer)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
