package cmd

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/config"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/guard"
)

var consoleMenu = []session.MenuItem{
	{Label: "Dashboard", Path: "/account", Roles: []session.Role{session.RoleAny}},
	{Label: "Users", Path: "/account/usersList", Roles: []session.Role{session.RoleAdmin}},
	{Label: "Customers", Path: "/account/customerList", Roles: []session.Role{session.RoleSalesManager, session.RoleAdmin}},
	{Label: "Orders", Path: "/account/ordersList", Roles: []session.Role{session.RoleAdmin, session.RoleSalesManager}},
	{Label: "Warehouses", Path: "/account/warehouseList", Roles: []session.Role{session.RoleAdmin, session.RoleInventoryManager}},
	{Label: "Products", Path: "/account/productsList", Roles: []session.Role{session.RoleAdmin, session.RoleInventoryManager, session.RoleSalesManager}},
	{Label: "Invoices", Path: "/account/invoiceList", Roles: []session.Role{session.RoleAdmin, session.RoleAccountant}},
	{Label: "Accountings", Path: "/account/accountingList", Roles: []session.Role{session.RoleAdmin, session.RoleAccountant}},
	{Label: "Reservation", Path: "/account/reservations", Roles: []session.Role{session.RoleAdmin, session.RoleAccountant}},
}

func newMenuCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "List the console sections available to the current principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.MustFromContext(ctx)

			store, err := cfg.App.Store(ctx)
			if err != nil {
				return err
			}

			table := pterm.TableData{{"SECTION", "PATH", "ROLES"}}
			for _, item := range session.VisibleMenu(store.Current(), consoleMenu) {
				table = append(table, []string{item.Label, item.Path, strings.Join(session.RoleStrings(item.Roles), ", ")})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		},
	}
	return guard.Require(cmd, "/account", session.RoleAny)
}
