package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	session "github.com/goliatone/go-erp-session"
)

var testMenu = []session.MenuItem{
	{Label: "Dashboard", Path: "/account", Roles: []session.Role{session.RoleAny}},
	{Label: "Users", Path: "/account/usersList", Roles: []session.Role{session.RoleAdmin}},
	{Label: "Customers", Path: "/account/customerList", Roles: []session.Role{session.RoleSalesManager, session.RoleAdmin}},
	{Label: "Invoices", Path: "/account/invoiceList", Roles: []session.Role{session.RoleAdmin, session.RoleAccountant}},
}

func labels(items []session.MenuItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Label)
	}
	return out
}

func TestVisibleMenu(t *testing.T) {
	tests := []struct {
		name  string
		roles []session.Role
		want  []string
	}{
		{name: "admin", roles: []session.Role{session.RoleAdmin}, want: []string{"Dashboard", "Users", "Customers", "Invoices"}},
		{name: "accountant", roles: []session.Role{session.RoleAccountant}, want: []string{"Dashboard", "Invoices"}},
		{name: "sales manager", roles: []session.Role{session.RoleSalesManager}, want: []string{"Dashboard", "Customers"}},
		{name: "inventory manager", roles: []session.Role{session.RoleInventoryManager}, want: []string{"Dashboard"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &session.Principal{Email: "x@example.com", AccessToken: "tok", Roles: tt.roles}
			assert.Equal(t, tt.want, labels(session.VisibleMenu(p, testMenu)))
		})
	}
}

func TestVisibleMenuAnonymous(t *testing.T) {
	assert.Empty(t, session.VisibleMenu(nil, testMenu))
	assert.False(t, testMenu[0].VisibleTo(&session.Principal{Email: "x@example.com"}))
}
