package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/activitymap"
	"github.com/goliatone/go-erp-session/config"
	"github.com/goliatone/go-erp-session/notify"
	"github.com/goliatone/go-erp-session/notify/redispubsub"
	"github.com/goliatone/go-erp-session/notify/stomp"
	"github.com/goliatone/go-erp-session/storage"
)

// Provider lazily builds the session core from Settings. Every accessor
// builds its dependency once and returns the same value afterwards.
type Provider struct {
	settings *config.Settings
	logger   session.Logger

	backendOnce sync.Once
	backend     session.Backend
	backendErr  error
	closers     []func() error

	redisOnce sync.Once
	redis     *redis.Client
	redisErr  error

	inspectorOnce sync.Once
	inspector     session.TokenInspector
	jwks          *session.JWKSInspector
	inspectorErr  error

	storeOnce sync.Once
	store     *session.Store
	storeErr  error

	clientOnce sync.Once
	client     *session.Client
	clientErr  error

	gatewayMu sync.Mutex
	gateway   *session.Gateway
}

// NewProvider binds a provider to settings.
func NewProvider(settings *config.Settings, logger session.Logger) *Provider {
	if logger == nil {
		logger = session.NopLogger()
	}
	return &Provider{settings: settings, logger: logger}
}

// Settings returns the loaded settings.
func (p *Provider) Settings() *config.Settings {
	return p.settings
}

// Logger returns the shared logger.
func (p *Provider) Logger() session.Logger {
	return p.logger
}

// Backend opens the configured storage driver.
func (p *Provider) Backend(ctx context.Context) (session.Backend, error) {
	p.backendOnce.Do(func() {
		switch p.settings.StorageDriver {
		case config.StorageMemory:
			p.backend = storage.NewMemory()

		case config.StorageSQLite:
			dsn := p.settings.SQLiteDSN
			if dsn == "" {
				dir, err := p.storageDir()
				if err != nil {
					p.backendErr = err
					return
				}
				dsn = "file:" + filepath.Join(dir, "session.db")
			}
			db, err := storage.OpenSQLite(ctx, dsn)
			if err != nil {
				p.backendErr = err
				return
			}
			p.closers = append(p.closers, db.Close)
			p.backend = db

		case config.StorageRedis:
			client, err := p.Redis(ctx)
			if err != nil {
				p.backendErr = err
				return
			}
			p.backend = storage.NewRedis(client, storage.WithRedisPrefix(p.settings.Redis.Prefix))

		default:
			dir, err := p.storageDir()
			if err != nil {
				p.backendErr = err
				return
			}
			f, err := storage.NewFile(dir)
			if err != nil {
				p.backendErr = err
				return
			}
			p.backend = f
		}
		p.logger.Debug("storage backend ready", "driver", string(p.settings.StorageDriver))
	})
	return p.backend, p.backendErr
}

func (p *Provider) storageDir() (string, error) {
	if p.settings.StorageDir != "" {
		return p.settings.StorageDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".erp"), nil
}

// Redis connects once and is shared by the redis storage driver and the
// redis push transport.
func (p *Provider) Redis(ctx context.Context) (*redis.Client, error) {
	p.redisOnce.Do(func() {
		client, err := storage.ConnectRedis(ctx, storage.RedisConfig{
			Addr: p.settings.Redis.Addr,
			DB:   p.settings.Redis.DB,
		})
		if err != nil {
			p.redisErr = err
			return
		}
		p.closers = append(p.closers, client.Close)
		p.redis = client
	})
	return p.redis, p.redisErr
}

// TokenInspector verifies against JWKS when configured, otherwise only
// decodes the token.
func (p *Provider) TokenInspector(ctx context.Context) (session.TokenInspector, error) {
	p.inspectorOnce.Do(func() {
		if p.settings.JWKSURL == "" {
			p.inspector = session.UnverifiedInspector{}
			return
		}
		jwks, err := session.NewJWKSInspector(ctx, p.settings.JWKSURL, p.logger)
		if err != nil {
			p.inspectorErr = err
			return
		}
		p.jwks = jwks
		p.inspector = jwks
	})
	return p.inspector, p.inspectorErr
}

// Store returns the hydrated session store.
func (p *Provider) Store(ctx context.Context) (*session.Store, error) {
	p.storeOnce.Do(func() {
		backend, err := p.Backend(ctx)
		if err != nil {
			p.storeErr = err
			return
		}
		inspector, err := p.TokenInspector(ctx)
		if err != nil {
			p.storeErr = err
			return
		}
		store := session.NewStore(backend,
			session.WithStorageKey(p.settings.GetStorageKey()),
			session.WithTokenInspector(inspector),
			session.WithStoreLogger(p.logger),
		)
		if err := store.Hydrate(ctx); err != nil {
			p.storeErr = err
			return
		}
		p.store = store
	})
	return p.store, p.storeErr
}

// Redirects returns the redirect-back slot on the same backend.
func (p *Provider) Redirects(ctx context.Context) (*session.RedirectStore, error) {
	backend, err := p.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return session.NewRedirectStore(backend, session.WithRedirectLogger(p.logger)), nil
}

// Client returns the API client. A 401 on an authenticated call clears the session.
func (p *Provider) Client(ctx context.Context) (*session.Client, error) {
	p.clientOnce.Do(func() {
		store, err := p.Store(ctx)
		if err != nil {
			p.clientErr = err
			return
		}
		p.client, p.clientErr = session.NewClient(p.settings.GetAPIURL(), store.AccessToken,
			session.WithRequestTimeout(p.settings.GetRequestTimeout()),
			session.WithClientLogger(p.logger),
			session.WithUnauthorizedHandler(p.credentialRejected),
		)
	})
	return p.client, p.clientErr
}

func (p *Provider) credentialRejected(ctx context.Context) {
	p.gatewayMu.Lock()
	g := p.gateway
	p.gatewayMu.Unlock()
	if g != nil {
		g.CredentialRejected(ctx)
	}
}

// Gateway returns the auth gateway.
func (p *Provider) Gateway(ctx context.Context) (*session.Gateway, error) {
	p.gatewayMu.Lock()
	defer p.gatewayMu.Unlock()
	if p.gateway != nil {
		return p.gateway, nil
	}

	client, err := p.Client(ctx)
	if err != nil {
		return nil, err
	}
	store, err := p.Store(ctx)
	if err != nil {
		return nil, err
	}
	p.gateway = session.NewGateway(client, store,
		session.WithGatewayLogger(p.logger),
		session.WithActivitySink(p.ActivitySink()),
	)
	return p.gateway, nil
}

// ActivitySink logs normalized activity records at debug level.
func (p *Provider) ActivitySink() session.ActivitySink {
	return activitymap.Sink(func(n activitymap.Normalized) error {
		p.logger.Debug("activity",
			"verb", n.Verb,
			"actor", n.ActorID,
			"object_type", n.ObjectType,
			"object_id", n.ObjectID,
			"metadata", n.Metadata,
		)
		return nil
	}, activitymap.WithDefaultChannel("erpctl"))
}

// Subscriber builds the configured push transport, nil when disabled.
func (p *Provider) Subscriber(ctx context.Context) (notify.Subscriber, error) {
	switch p.settings.PushTransport {
	case config.PushNone:
		return nil, nil
	case config.PushRedis:
		client, err := p.Redis(ctx)
		if err != nil {
			return nil, err
		}
		return redispubsub.New(client,
			redispubsub.WithChannel(p.settings.Redis.Channel),
			redispubsub.WithLogger(p.logger),
		), nil
	default:
		store, err := p.Store(ctx)
		if err != nil {
			return nil, err
		}
		return stomp.New(p.settings.SocketURL,
			stomp.WithTopic(p.settings.NotificationsTopic),
			stomp.WithTokenSource(store.AccessToken),
			stomp.WithLogger(p.logger),
		), nil
	}
}

// Channel builds a notification channel. Pass withPush to attach the
// configured subscriber.
func (p *Provider) Channel(ctx context.Context, withPush bool, opts ...notify.ChannelOption) (*notify.Channel, error) {
	store, err := p.Store(ctx)
	if err != nil {
		return nil, err
	}
	client, err := p.Client(ctx)
	if err != nil {
		return nil, err
	}

	all := []notify.ChannelOption{
		notify.WithChannelLogger(p.logger),
		notify.WithReconnectDelay(p.settings.ReconnectDelay),
	}
	if withPush {
		sub, err := p.Subscriber(ctx)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			all = append(all, notify.WithSubscriber(sub))
		}
	}
	all = append(all, opts...)
	return notify.NewChannel(store, notify.NewRESTService(client), all...), nil
}

// Close releases connections opened by the provider.
func (p *Provider) Close() error {
	if p.jwks != nil {
		p.jwks.Close()
	}
	var firstErr error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
