package notifications

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-erp-session/notify"
)

func newListCommand() *cobra.Command {
	var unreadOnly bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notifications visible to the current principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChannel(cmd.Context(), func(ch *notify.Channel) error {
				items := ch.Notifications()
				if unreadOnly {
					filtered := items[:0]
					for _, n := range items {
						if !n.IsRead {
							filtered = append(filtered, n)
						}
					}
					items = filtered
				}
				pterm.DefaultSection.Printf("Notifications (%d unread)", ch.UnreadCount())
				return renderTable(items)
			})
		},
	}
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only show unread notifications")
	return cmd
}
