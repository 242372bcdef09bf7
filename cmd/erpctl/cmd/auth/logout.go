package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/config"
)

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.MustFromContext(ctx)

			gateway, err := cfg.App.Gateway(ctx)
			if err != nil {
				return err
			}
			if err := gateway.Logout(ctx); err != nil {
				return err
			}
			pterm.Success.Println("Logged out")
			return nil
		},
	}
}
