package notifications

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-erp-session/notify"
)

func newReadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withChannel(ctx, func(ch *notify.Channel) error {
				if err := ch.MarkAsRead(ctx, notify.ID(args[0])); err != nil {
					return err
				}
				pterm.Success.Printf("Notification %s marked as read, %d unread\n", args[0], ch.UnreadCount())
				return nil
			})
		},
	}
}

func newReadAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withChannel(ctx, func(ch *notify.Channel) error {
				if err := ch.MarkAllAsRead(ctx); err != nil {
					return err
				}
				pterm.Success.Println("All notifications marked as read")
				return nil
			})
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a notification",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withChannel(ctx, func(ch *notify.Channel) error {
				if err := ch.Delete(ctx, notify.ID(args[0])); err != nil {
					return err
				}
				pterm.Success.Printf("Notification %s deleted\n", args[0])
				return nil
			})
		},
	}
}
