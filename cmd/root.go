// Package cmd holds the ticketdesk command tree.
package cmd

import (
	"context"
	"io"

	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/dmitrijs2005/ticketdesk/internal/server"
	"github.com/dmitrijs2005/ticketdesk/internal/server/config"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the full command tree. Running it without a
// subcommand starts the server.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ticketdesk",
		Short:         "Client ticket desk: ticket lifecycle API with admin login",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newHashPasswordCmd())
	root.AddCommand(newTicketCmd())
	return root
}

func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cmd.Flags())
}

// openApp builds an App whose log output goes to w.
func openApp(ctx context.Context, cfg *config.Config, w io.Writer) (*server.App, logging.Logger, error) {
	logger := server.NewLogger(cfg, w)
	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app, logger, nil
}
