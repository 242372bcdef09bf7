// Package redispubsub bridges notifications published on a Redis channel
// into a notify.Channel.
package redispubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/notify"
)

// DefaultChannel is the Redis channel notifications are published on.
const DefaultChannel = "notifications"

// Subscriber implements notify.Subscriber on Redis pub/sub.
type Subscriber struct {
	client  redis.UniversalClient
	channel string
	logger  session.Logger
}

var _ notify.Subscriber = (*Subscriber)(nil)

// Option customizes a Subscriber.
type Option func(*Subscriber)

// WithChannel overrides DefaultChannel.
func WithChannel(channel string) Option {
	return func(s *Subscriber) {
		if channel != "" {
			s.channel = channel
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger session.Logger) Option {
	return func(s *Subscriber) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a subscriber reading from client.
func New(client redis.UniversalClient, opts ...Option) *Subscriber {
	s := &Subscriber{
		client:  client,
		channel: DefaultChannel,
		logger:  session.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Channel returns the Redis channel name.
func (s *Subscriber) Channel() string {
	return s.channel
}

// Subscribe waits for the subscription to be confirmed, then forwards every
// payload until ctx is done or the connection fails.
func (s *Subscriber) Subscribe(ctx context.Context, handle notify.Handler) error {
	ps := s.client.Subscribe(ctx, s.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", s.channel, err)
	}
	s.logger.Info("subscribed to notifications", "channel", s.channel)

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("redis receive: %w", err)
		}
		handle([]byte(msg.Payload))
	}
}

// Publish encodes n and publishes it on channel. It returns the number of
// subscribers that received it.
func Publish(ctx context.Context, client redis.UniversalClient, channel string, n notify.Notification) (int64, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return 0, fmt.Errorf("encode notification: %w", err)
	}
	return client.Publish(ctx, channel, payload).Result()
}
