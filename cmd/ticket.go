package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/server"
	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
	"github.com/spf13/cobra"
)

// ticketContext is what every ticket subcommand works with.
type ticketContext struct {
	app     *server.App
	session string
	out     io.Writer
}

type ticketAction func(ctx context.Context, tc *ticketContext, args []string) error

func newTicketCmd() *cobra.Command {
	ticketCmd := &cobra.Command{
		Use:   "ticket",
		Short: "Administer tickets directly against the configured store",
	}
	ticketCmd.PersistentFlags().String("operator", os.Getenv("USER"), "operator name recorded in the session")

	ticketCmd.AddCommand(
		ticketSubcommand("create", "Open a new Pending ticket", cobra.NoArgs, createTicket),
		ticketSubcommand("list", "List tickets, newest first", cobra.NoArgs, listTickets),
		ticketSubcommand("show <id>", "Print a ticket as JSON", cobra.ExactArgs(1), showTicket),
		ticketSubcommand("complete <id>", "Mark a Verified ticket Completed", cobra.ExactArgs(1), transitionWith(func(a *server.App) transitionFunc { return a.Tickets().Complete })),
		ticketSubcommand("deliver <id>", "Email the delivery notice for a Completed ticket", cobra.ExactArgs(1), deliverTicket),
		ticketSubcommand("force-cancel <id>", "Cancel a Pending or Verified ticket", cobra.ExactArgs(1), transitionWith(func(a *server.App) transitionFunc { return a.Tickets().ForceCancel })),
		ticketSubcommand("force-verify <id>", "Mark a Pending ticket Verified without intake", cobra.ExactArgs(1), transitionWith(func(a *server.App) transitionFunc { return a.Tickets().ForceVerify })),
		ticketSubcommand("delete <id>", "Remove a ticket", cobra.ExactArgs(1), deleteTicket),
	)
	return ticketCmd
}

func ticketSubcommand(use, short string, args cobra.PositionalArgs, action ticketAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			app, _, err := openApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			operator, _ := cmd.Flags().GetString("operator")
			session, err := app.Admin().OperatorSession(operator)
			if err != nil {
				return err
			}
			return action(cmd.Context(), &ticketContext{app: app, session: session.Token, out: cmd.OutOrStdout()}, args)
		},
	}
}

func createTicket(ctx context.Context, tc *ticketContext, _ []string) error {
	t, err := tc.app.Tickets().Create(ctx, tc.session)
	if err != nil {
		return err
	}
	fmt.Fprintln(tc.out, t.ID)
	return nil
}

func listTickets(ctx context.Context, tc *ticketContext, _ []string) error {
	list, err := tc.app.Tickets().List(ctx, tc.session)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(tc.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tCLIENT")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, t.CreatedAt.Format(time.RFC3339), t.ClientName)
	}
	return w.Flush()
}

func showTicket(ctx context.Context, tc *ticketContext, args []string) error {
	t, err := tc.app.Tickets().Get(ctx, args[0])
	if err != nil {
		return err
	}
	return printTicket(tc.out, t)
}

type transitionFunc func(ctx context.Context, session, id string) (*models.Ticket, error)

func transitionWith(pick func(*server.App) transitionFunc) ticketAction {
	return func(ctx context.Context, tc *ticketContext, args []string) error {
		t, err := pick(tc.app)(ctx, tc.session, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(tc.out, "%s: %s\n", t.ID, t.Status)
		return nil
	}
}

func deliverTicket(ctx context.Context, tc *ticketContext, args []string) error {
	if err := tc.app.Tickets().SendDeliveryEmail(ctx, tc.session, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(tc.out, "%s: delivery email sent\n", args[0])
	return nil
}

func deleteTicket(ctx context.Context, tc *ticketContext, args []string) error {
	if err := tc.app.Tickets().Delete(ctx, tc.session, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(tc.out, "%s: deleted\n", args[0])
	return nil
}

func printTicket(w io.Writer, t *models.Ticket) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}
