package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/config"
)

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <code>",
		Short: "Verify an account with the emailed code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.MustFromContext(ctx)

			gateway, err := cfg.App.Gateway(ctx)
			if err != nil {
				return err
			}
			msg := "Email verified"
			err = session.NewVerifyAccountHandler(gateway).Execute(ctx, session.VerifyAccountMessage{
				Code: args[0],
				OnResponse: func(res *session.VerifyResult) {
					if res.Message != "" {
						msg = res.Message
					}
				},
			})
			if err != nil {
				return err
			}
			pterm.Success.Println(msg)
			pterm.Info.Println("You can now run `erpctl auth login`.")
			return nil
		},
	}
}
