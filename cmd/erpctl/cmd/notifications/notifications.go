package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/config"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/guard"
	"github.com/goliatone/go-erp-session/notify"
)

// NewCommand is the parent command for the notification center
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif", "n"},
		Short:   "Work with the notification center",
	}
	cmd.AddCommand(guard.Require(newListCommand(), "/account/notifications", session.RoleAny))
	cmd.AddCommand(guard.Require(newReadCommand(), "/account/notifications", session.RoleAny))
	cmd.AddCommand(guard.Require(newReadAllCommand(), "/account/notifications", session.RoleAny))
	cmd.AddCommand(guard.Require(newDeleteCommand(), "/account/notifications", session.RoleAny))
	cmd.AddCommand(guard.Require(newWatchCommand(), "/account/notifications", session.RoleAny))
	return cmd
}

// withChannel loads the feed for the current principal and runs fn on it.
func withChannel(ctx context.Context, fn func(*notify.Channel) error) error {
	cfg := config.MustFromContext(ctx)
	ch, err := cfg.App.Channel(ctx, false)
	if err != nil {
		return err
	}
	defer ch.Stop()

	if err := ch.Refresh(ctx); err != nil {
		return err
	}
	return fn(ch)
}

func renderTable(items []notify.Notification) error {
	if len(items) == 0 {
		pterm.Info.Println("No notifications")
		return nil
	}
	table := pterm.TableData{{"ID", "STATUS", "READ", "WHEN", "CONTENT"}}
	for _, n := range items {
		table = append(table, []string{
			n.ID.String(),
			statusLabel(n.Status),
			readLabel(n.IsRead),
			formatWhen(n.Timestamp.Time),
			n.Content,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func statusLabel(s notify.Status) string {
	switch s {
	case notify.StatusError:
		return pterm.Red(string(s))
	case notify.StatusWarning:
		return pterm.Yellow(string(s))
	default:
		return string(s)
	}
}

func readLabel(read bool) string {
	if read {
		return "yes"
	}
	return pterm.Bold.Sprint("no")
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func printArrival(n notify.Notification) {
	msg := fmt.Sprintf("[%s] %s", n.ID, n.Content)
	switch n.Status {
	case notify.StatusError:
		pterm.Error.Println(msg)
	case notify.StatusWarning:
		pterm.Warning.Println(msg)
	default:
		pterm.Info.Println(msg)
	}
}
