// Package guard gates erpctl commands by role. A command opts in with
// Require; the root command calls Enforce before running it.
package guard

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/config"
)

const (
	annotationRoles = "erpctl/roles"
	annotationPath  = "erpctl/path"
)

// Require marks cmd as protected. path is the location remembered for
// resume after login. session.RoleAny admits every authenticated principal.
func Require(cmd *cobra.Command, path string, roles ...session.Role) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationRoles] = strings.Join(session.RoleStrings(roles), ",")
	cmd.Annotations[annotationPath] = path
	return cmd
}

// Requirement reads what Require stored. ok is false for public commands.
func Requirement(cmd *cobra.Command) (roles []session.Role, path string, ok bool) {
	raw, ok := cmd.Annotations[annotationRoles]
	if !ok {
		return nil, "", false
	}
	for _, r := range session.ParseRoles(raw) {
		if r == session.RoleAny {
			return nil, cmd.Annotations[annotationPath], true
		}
		roles = append(roles, r)
	}
	return roles, cmd.Annotations[annotationPath], true
}

// Enforce resolves a Guard for protected commands. A denial is returned as
// the error and the requested path is remembered for after login.
func Enforce(cmd *cobra.Command) error {
	roles, path, ok := Requirement(cmd)
	if !ok {
		return nil
	}

	ctx := cmd.Context()
	cfg := config.MustFromContext(ctx)

	store, err := cfg.App.Store(ctx)
	if err != nil {
		return err
	}
	redirects, err := cfg.App.Redirects(ctx)
	if err != nil {
		return err
	}

	g := session.NewGuard(store, redirects, roles,
		session.WithLoginPath(cfg.Settings.GetLoginPath()),
		session.WithGuardLogger(cfg.App.Logger()),
		session.WithGuardActivitySink(cfg.App.ActivitySink()),
	)
	decision, err := g.Resolve(ctx, path)
	if err != nil {
		return err
	}
	if decision.Allowed() {
		return nil
	}

	if session.IsPermissionError(decision.Reason) {
		pterm.Warning.Printf("%s requires one of: %s\n", path, strings.Join(session.RoleStrings(roles), ", "))
	} else {
		pterm.Warning.Printf("Not logged in. Run `erpctl auth login` (%s) to continue to %s.\n", decision.RedirectTo, path)
	}
	return decision.Reason
}
