package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/config"
)

func newLoginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the ERP API",
		Long: `Logs in with email and password. The session is kept between runs until
logout, or until the API rejects the credential. Accounts without roles
cannot log in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.MustFromContext(ctx)

			if email == "" {
				v, err := pterm.DefaultInteractiveTextInput.Show("Email")
				if err != nil {
					return err
				}
				email = strings.TrimSpace(v)
			}
			if password == "" {
				v, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
				if err != nil {
					return err
				}
				password = v
			}

			gateway, err := cfg.App.Gateway(ctx)
			if err != nil {
				return err
			}

			spinner := startSpinner("Logging in...")
			principal, err := gateway.Login(ctx, email, password)
			if err != nil {
				if spinner != nil {
					spinner.Fail("Login failed")
				}
				return err
			}
			if spinner != nil {
				spinner.Success(fmt.Sprintf("Logged in as %s", principal.DisplayName()))
			}

			pterm.Info.Printf("Roles: %s\n", strings.Join(session.RoleStrings(principal.Roles), ", "))

			redirects, err := cfg.App.Redirects(ctx)
			if err != nil {
				return err
			}
			pterm.Info.Printf("Continue at: %s\n", session.ResumeTarget(ctx, redirects, cfg.Settings.GetLandingPath()))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	return cmd
}

// startSpinner returns nil when output is muted or stdout is not a terminal,
// so the spinner goroutine never runs in scripts and tests.
func startSpinner(text string) *pterm.SpinnerPrinter {
	if !pterm.Output || pterm.RawOutput || !isatty.IsTerminal(os.Stdout.Fd()) {
		return nil
	}
	spinner, err := pterm.DefaultSpinner.Start(text)
	if err != nil {
		return nil
	}
	return spinner
}
