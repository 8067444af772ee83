package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"datafit/internal/config"
	"datafit/internal/infrastructure"
	"datafit/internal/repository"
	"datafit/pkg/contracts"
)

// rootCmd is the base command for the datafit CLI
var rootCmd = &cobra.Command{
	Use:   "datafit",
	Short: "Spreadsheet statistics and analysis suitability service",
	Long: `datafit accepts uploaded spreadsheets, keeps the numeric columns that pass
validation, computes descriptive statistics for each column and decides whether
the dataset suits correlation and discriminant analysis.

Configuration is read from config.yaml (or DATAFIT_CONFIG_FILE), a .env file
and DATAFIT_* environment variables.`,
	Version:       contracts.GetVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadRuntime loads configuration and the process logger.
func loadRuntime() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// openStore opens the configured database.
func openStore(ctx context.Context) (*config.Config, *slog.Logger, *repository.Store, error) {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, logger, store, nil
}
