package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/cmd/erpctl/cmd/auth"
	"github.com/goliatone/go-erp-session/cmd/erpctl/cmd/notifications"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/app"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/config"
	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/guard"
	erpconfig "github.com/goliatone/go-erp-session/config"
)

type rootFlags struct {
	apiURL   string
	envFile  string
	logLevel string
	storage  string
}

// NewRootCommand assembles the erpctl command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}
	var provider *app.Provider

	root := &cobra.Command{
		Use:   "erpctl",
		Short: "ERP console client - session, authorization and notifications",
		Long: `erpctl is a command-line client for the ERP admin API. It keeps the
logged in principal between runs, gates commands by role and follows the
live notification feed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(flags)
			if err != nil {
				return err
			}

			logger := session.NewLogger(settings.LoggerOptions())
			provider = app.NewProvider(settings, logger)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = config.InjectConfig(ctx, &config.GlobalConfig{Settings: settings, App: provider})
			cmd.SetContext(ctx)

			return guard.Enforce(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if provider == nil {
				return nil
			}
			return provider.Close()
		},
	}

	root.PersistentFlags().StringVar(&flags.apiURL, "api", "", "ERP API base URL (overrides ERP_API_URL)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "optional dotenv file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides ERP_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&flags.storage, "storage", "", "session storage driver: file, sqlite, redis, memory (overrides ERP_STORAGE_DRIVER)")

	root.AddCommand(auth.NewCommand())
	root.AddCommand(notifications.NewCommand())
	root.AddCommand(newMenuCommand())
	return root
}

func loadSettings(flags *rootFlags) (*erpconfig.Settings, error) {
	settings, err := erpconfig.Load(flags.envFile)
	if err != nil {
		return nil, err
	}
	if flags.apiURL != "" {
		settings.APIURL = flags.apiURL
		settings.SocketURL = ""
	}
	if flags.logLevel != "" {
		settings.LogLevel = flags.logLevel
	}
	if flags.storage != "" {
		settings.StorageDriver = erpconfig.StorageDriver(strings.ToLower(flags.storage))
	}
	settings.Sanitize()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		pterm.Error.Println(session.UserMessage(err))
		if fields := session.FieldErrors(err); len(fields) > 0 {
			for field, msg := range fields {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
			}
		}
		os.Exit(1)
	}
}
