package main

import (
	"github.com/spf13/cobra"

	"datafit/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Migrate the database, seed the indicator catalog and serve the HTTP API
until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApplication(cmd.Context())
		if err != nil {
			return err
		}
		return application.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
