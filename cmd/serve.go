package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health endpoint",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	app, _, err := openApp(cmd.Context(), cfg, os.Stdout)
	if err != nil {
		return err
	}
	return app.Run(cmd.Context())
}
