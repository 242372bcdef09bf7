package auth

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/config"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Display the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.MustFromContext(ctx)

			store, err := cfg.App.Store(ctx)
			if err != nil {
				return err
			}

			principal := store.Current()
			if principal == nil {
				pterm.Info.Println("Not logged in")
				return nil
			}

			pterm.DefaultSection.Println("Session")
			table := pterm.TableData{
				{"EMAIL", "NAME", "ROLES"},
				{principal.Email, principal.DisplayName(), strings.Join(session.RoleStrings(principal.RoleSet().Slice()), ", ")},
			}
			return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		},
	}
}
