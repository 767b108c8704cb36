package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thatguy/facility-reports/internal/config"
	"github.com/thatguy/facility-reports/internal/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reporter",
		Short: "Maintenance reports for a fixed set of facilities",
		Long: `reporter files maintenance reports against registered facilities,
serves them over HTTP and Telegram, and mirrors them to the report endpoint.

  reporter serve              Run the API, metrics and Telegram bot
  reporter resolve 1 5 99     Show display names for facility ids
  reporter facilities         List the facility registry
  reporter import --csv f     Import a CSV export of the report sheet`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newFacilitiesCmd())
	root.AddCommand(newImportCmd())
	return root
}

// loadConfig loads configuration and a logger at the configured level.
func loadConfig() (config.Config, *logger.Logger, error) {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, log, fmt.Errorf("load configuration: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using INFO\n", err)
	}
	return cfg, log.WithLevel(level), nil
}
