// Package config loads client settings from the environment. Every key is
// prefixed with ERP_ and an optional .env file is read first.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	session "github.com/goliatone/go-erp-session"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "ERP_"

// StorageDriver selects the session slot backend.
type StorageDriver string

const (
	StorageFile   StorageDriver = "file"
	StorageSQLite StorageDriver = "sqlite"
	StorageRedis  StorageDriver = "redis"
	StorageMemory StorageDriver = "memory"
)

// PushTransport selects the notification push subscriber.
type PushTransport string

const (
	PushStomp PushTransport = "stomp"
	PushRedis PushTransport = "redis"
	PushNone  PushTransport = "none"
)

// RedisConfig holds the Redis connection used by the redis storage driver
// and the redis push transport.
type RedisConfig struct {
	Addr    string `env:"ADDR" envDefault:"localhost:6379"`
	DB      int    `env:"DB" envDefault:"0"`
	Prefix  string `env:"PREFIX" envDefault:"erp:session:"`
	Channel string `env:"CHANNEL" envDefault:"notifications"`
}

// Settings is the full client configuration. It implements session.Config.
type Settings struct {
	APIURL             string        `env:"API_URL" envDefault:"http://localhost:8080"`
	SocketURL          string        `env:"SOCKET_URL"`
	NotificationsTopic string        `env:"NOTIFICATIONS_TOPIC" envDefault:"/topic/notifications"`
	PushTransport      PushTransport `env:"PUSH_TRANSPORT" envDefault:"stomp"`
	ReconnectDelay     time.Duration `env:"RECONNECT_DELAY" envDefault:"5s"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	StorageDriver StorageDriver `env:"STORAGE_DRIVER" envDefault:"file"`
	StorageDir    string        `env:"STORAGE_DIR"`
	StorageKey    string        `env:"STORAGE_KEY" envDefault:"user"`
	SQLiteDSN     string        `env:"SQLITE_DSN"`
	Redis         RedisConfig   `envPrefix:"REDIS_"`

	LoginPath   string `env:"LOGIN_PATH" envDefault:"/login"`
	LandingPath string `env:"LANDING_PATH" envDefault:"/account"`
	JWKSURL     string `env:"JWKS_URL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"warn"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

var _ session.Config = (*Settings)(nil)

// Load reads files (default ".env") when present, then the environment.
func Load(files ...string) (*Settings, error) {
	if err := godotenv.Load(files...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (*Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	s.Sanitize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Sanitize normalizes values and derives the ones left empty.
func (s *Settings) Sanitize() {
	s.APIURL = strings.TrimRight(strings.TrimSpace(s.APIURL), "/")
	s.StorageDriver = StorageDriver(strings.ToLower(strings.TrimSpace(string(s.StorageDriver))))
	s.PushTransport = PushTransport(strings.ToLower(strings.TrimSpace(string(s.PushTransport))))

	if s.SocketURL == "" && s.APIURL != "" {
		s.SocketURL = DeriveSocketURL(s.APIURL)
	}
	if s.ReconnectDelay <= 0 {
		s.ReconnectDelay = 5 * time.Second
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = 15 * time.Second
	}
	if s.StorageKey == "" {
		s.StorageKey = session.DefaultStorageKey
	}
}

// Validate checks enumerations and URLs.
func (s *Settings) Validate() error {
	u, err := url.Parse(s.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid %sAPI_URL %q", EnvPrefix, s.APIURL)
	}
	switch s.StorageDriver {
	case StorageFile, StorageSQLite, StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("config: unknown %sSTORAGE_DRIVER %q", EnvPrefix, s.StorageDriver)
	}
	switch s.PushTransport {
	case PushStomp, PushRedis, PushNone:
	default:
		return fmt.Errorf("config: unknown %sPUSH_TRANSPORT %q", EnvPrefix, s.PushTransport)
	}
	return nil
}

// DeriveSocketURL maps http(s)://host to ws(s)://host/ws/websocket, the raw
// WebSocket endpoint next to the SockJS one.
func DeriveSocketURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/websocket"
	return u.String()
}

func (s *Settings) GetAPIURL() string                { return s.APIURL }
func (s *Settings) GetStorageKey() string            { return s.StorageKey }
func (s *Settings) GetRequestTimeout() time.Duration { return s.RequestTimeout }
func (s *Settings) GetLoginPath() string             { return s.LoginPath }
func (s *Settings) GetLandingPath() string           { return s.LandingPath }
func (s *Settings) GetJWKSURL() string               { return s.JWKSURL }

// LoggerOptions maps the log settings onto session.LoggerOptions.
func (s *Settings) LoggerOptions() session.LoggerOptions {
	return session.LoggerOptions{Level: s.LogLevel, Pretty: s.LogPretty}
}
