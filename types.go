package session

import (
	"context"
	"time"
)

// Logger is the logging contract used across the package. Messages may be
// printf style or followed by key/value pairs.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds session options
type Config interface {
	GetAPIURL() string
	GetStorageKey() string
	GetRequestTimeout() time.Duration
	GetLoginPath() string
	GetLandingPath() string
	GetJWKSURL() string
}

// Backend persists opaque values under string keys. The storage package
// ships memory, file, sqlite and redis implementations.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// PrincipalSource returns the principal as known at call time.
type PrincipalSource func() *Principal

// Listener is notified synchronously whenever the session slot changes.
// A nil principal means the session was cleared.
type Listener func(p *Principal)

type defaultConfig struct{}

func (defaultConfig) GetAPIURL() string                { return "http://localhost:8080" }
func (defaultConfig) GetStorageKey() string            { return DefaultStorageKey }
func (defaultConfig) GetRequestTimeout() time.Duration { return 15 * time.Second }
func (defaultConfig) GetLoginPath() string             { return DefaultLoginPath }
func (defaultConfig) GetLandingPath() string           { return DefaultLandingPath }
func (defaultConfig) GetJWKSURL() string               { return "" }

// DefaultConfig returns the configuration used when none is provided.
func DefaultConfig() Config {
	return defaultConfig{}
}

const (
	DefaultStorageKey  = "user"
	DefaultLoginPath   = "/login"
	DefaultLandingPath = "/account"
)
