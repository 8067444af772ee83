package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"datafit/internal/calculations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema and seed the indicator catalog",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, _, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	added, err := store.Indicators.Seed(ctx, calculations.CatalogNames())
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "schema ready, %d indicators added\n", added)
	return nil
}
