package auth

import (
	"github.com/goliatone/go-print"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/config"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/guard"
)

func newProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the account record held by the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.MustFromContext(ctx)

			gateway, err := cfg.App.Gateway(ctx)
			if err != nil {
				return err
			}
			profile, err := gateway.Profile(ctx)
			if err != nil {
				return err
			}
			pterm.Println(print.MaybePrettyJSON(profile))
			return nil
		},
	}
	return guard.Require(cmd, "/account/profile", session.RoleAny)
}
