package config

import (
	"context"

	"github.com/goliatone/go-erp-session/cmd/erpctl/internal/app"
	erpconfig "github.com/goliatone/go-erp-session/config"
)

type contextKey string

const configKey contextKey = "erpctl-config"

// GlobalConfig holds shared configuration for all erpctl commands. The root
// command injects it in PersistentPreRunE.
type GlobalConfig struct {
	Settings *erpconfig.Settings
	App      *app.Provider
}

// InjectConfig adds config to the command context.
func InjectConfig(ctx context.Context, cfg *GlobalConfig) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from the command context.
func FromContext(ctx context.Context) (*GlobalConfig, bool) {
	cfg, ok := ctx.Value(configKey).(*GlobalConfig)
	return cfg, ok
}

// MustFromContext retrieves config from context or panics.
func MustFromContext(ctx context.Context) *GlobalConfig {
	cfg, ok := FromContext(ctx)
	if !ok {
		panic("erpctl: config not found in context - this is a bug in erpctl")
	}
	return cfg
}
