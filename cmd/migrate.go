package cmd

import (
	"fmt"

	"github.com/dmitrijs2005/ticketdesk/internal/server"
	"github.com/dmitrijs2005/ticketdesk/internal/server/config"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	})
	return migrateCmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch cfg.StoreDriver {
	case config.StorePostgres, config.StoreSQLite:
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "migrate up: nothing to do for %s store\n", cfg.StoreDriver)
		return nil
	}

	store, err := server.OpenStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := server.MigrateStore(cmd.Context(), store); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrate up: ok")
	return nil
}
