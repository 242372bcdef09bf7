package notifications

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/config"
	"github.com/goliatone/go-erp-session/notify"
)

func newWatchCommand() *cobra.Command {
	var reloadEvery time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow notifications as they arrive",
		Long: `Loads the notification list and then prints pushed notifications until
interrupted. The stored session is re-read periodically so a logout or a
login from another terminal is picked up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := config.MustFromContext(ctx)
			store, err := cfg.App.Store(ctx)
			if err != nil {
				return err
			}

			changed := make(chan struct{}, 1)
			ch, err := cfg.App.Channel(ctx, true,
				notify.WithArrivalHandler(printArrival),
				notify.WithListChangeHandler(func() {
					select {
					case changed <- struct{}{}:
					default:
					}
				}),
			)
			if err != nil {
				return err
			}
			defer ch.Stop()

			if err := ch.Start(ctx); err != nil {
				return err
			}
			pterm.Info.Printf("Watching notifications for %s, press Ctrl+C to stop\n", store.Current().DisplayName())

			if reloadEvery <= 0 {
				reloadEvery = 10 * time.Second
			}
			unread := -1
			ticker := time.NewTicker(reloadEvery)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					pterm.Info.Println("Stopped")
					return nil
				case <-changed:
					if n := ch.UnreadCount(); n != unread {
						unread = n
						pterm.Info.Printf("%d unread\n", n)
					}
				case <-ticker.C:
					if err := store.Reload(ctx); err != nil {
						cfg.App.Logger().Warn("session reload failed", "error", err)
						continue
					}
					if store.Current() == nil {
						pterm.Warning.Println("Session ended")
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&reloadEvery, "reload-every", 10*time.Second, "how often to re-read the stored session")
	return cmd
}
