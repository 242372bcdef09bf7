// Package stomp subscribes to the notification topic over STOMP, either on
// a raw WebSocket endpoint or any other stream connection.
package stomp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/coder/websocket"
	gostomp "github.com/go-stomp/stomp/v3"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/notify"
)

const (
	// DefaultTopic is the destination notifications are broadcast on.
	DefaultTopic = "/topic/notifications"

	defaultReadLimit = 1 << 20
)

// ErrSubscriptionClosed is returned when the broker ends the subscription.
var ErrSubscriptionClosed = errors.New("stomp: subscription closed")

// Dialer opens the byte stream STOMP frames travel on.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Subscriber implements notify.Subscriber.
type Subscriber struct {
	dial      Dialer
	topic     string
	tokens    session.TokenSource
	heartbeat time.Duration
	logger    session.Logger
}

var _ notify.Subscriber = (*Subscriber)(nil)

// Option customizes a Subscriber.
type Option func(*Subscriber)

// WithTopic overrides DefaultTopic.
func WithTopic(topic string) Option {
	return func(s *Subscriber) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithTokenSource sends the bearer credential on CONNECT.
func WithTokenSource(tokens session.TokenSource) Option {
	return func(s *Subscriber) {
		s.tokens = tokens
	}
}

// WithHeartbeat sets the send and receive heart-beat. Zero disables it.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Subscriber) {
		s.heartbeat = d
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

// WithDialer replaces the WebSocket dialer.
func WithDialer(dial Dialer) Option {
	return func(s *Subscriber) {
		if dial != nil {
			s.dial = dial
		}
	}
}

// New subscribes over the WebSocket endpoint at socketURL (ws:// or wss://).
func New(socketURL string, opts ...Option) *Subscriber {
	s := &Subscriber{
		dial:      WebSocketDialer(socketURL),
		topic:     DefaultTopic,
		heartbeat: 10 * time.Second,
		logger:    session.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WebSocketDialer negotiates a STOMP subprotocol and exposes the socket as
// a stream of text messages.
func WebSocketDialer(socketURL string) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		c, _, err := websocket.Dial(ctx, socketURL, &websocket.DialOptions{
			Subprotocols: []string{"v12.stomp", "v11.stomp", "v10.stomp"},
		})
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", socketURL, err)
		}
		c.SetReadLimit(defaultReadLimit)
		return websocket.NetConn(ctx, c, websocket.MessageText), nil
	}
}

// Subscribe connects, subscribes to the topic and hands every message body
// to handle until ctx is done or the connection fails.
func (s *Subscriber) Subscribe(ctx context.Context, handle notify.Handler) error {
	rwc, err := s.dial(ctx)
	if err != nil {
		return err
	}

	opts := []func(*gostomp.Conn) error{
		gostomp.ConnOpt.HeartBeat(s.heartbeat, s.heartbeat),
	}
	if s.tokens != nil {
		if token := s.tokens(); token != "" {
			opts = append(opts, gostomp.ConnOpt.Header("Authorization", "Bearer "+token))
		}
	}

	conn, err := gostomp.Connect(rwc, opts...)
	if err != nil {
		rwc.Close()
		return fmt.Errorf("stomp connect: %w", err)
	}
	defer conn.MustDisconnect()

	sub, err := conn.Subscribe(s.topic, gostomp.AckAuto)
	if err != nil {
		return fmt.Errorf("stomp subscribe %s: %w", s.topic, err)
	}
	s.logger.Info("subscribed to notifications", "topic", s.topic)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C:
			if !ok {
				return ErrSubscriptionClosed
			}
			if msg.Err != nil {
				return fmt.Errorf("stomp receive: %w", msg.Err)
			}
			handle(msg.Body)
		}
	}
}
