package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/config"
)

func newRegisterCommand() *cobra.Command {
	var payload session.RegistrationPayload

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Submits the signup form. The account has to be verified with the code
sent by email (erpctl auth verify) before it can log in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.MustFromContext(ctx)

			gateway, err := cfg.App.Gateway(ctx)
			if err != nil {
				return err
			}
			handler := session.NewRegisterUserHandler(gateway)
			if err := handler.Execute(ctx, session.RegisterUserMessage{RegistrationPayload: payload}); err != nil {
				return err
			}
			pterm.Success.Printf("Registration submitted for %s. Check your inbox for the verification code.\n", payload.Email)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&payload.FirstName, "first-name", "", "first name")
	f.StringVar(&payload.LastName, "last-name", "", "last name")
	f.StringVar(&payload.Address, "address", "", "street address")
	f.StringVar(&payload.City, "city", "", "city")
	f.StringVar(&payload.PostalCode, "postal-code", "", "postal code")
	f.StringVar(&payload.Email, "email", "", "email")
	f.StringVar(&payload.PhoneNumber, "phone", "", "phone number")
	f.StringVar(&payload.Password, "password", "", "password")
	f.StringVar(&payload.ConfirmPassword, "confirm-password", "", "password confirmation")
	return cmd
}
