package auth

import (
	"github.com/spf13/cobra"
)

// NewCommand is the parent command for auth operations
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  `Commands for logging in and out, registering and verifying accounts.`,
	}
	cmd.AddCommand(newLoginCommand())
	cmd.AddCommand(newLogoutCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newRegisterCommand())
	cmd.AddCommand(newVerifyCommand())
	cmd.AddCommand(newProfileCommand())
	return cmd
}
