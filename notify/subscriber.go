package notify

import (
	"context"
)

// Handler receives one raw pushed payload.
type Handler func(payload []byte)

// Subscriber is a push transport. Subscribe delivers payloads to handle
// until ctx is done or the transport fails, and returns the failure. It is
// called again after the reconnect delay.
type Subscriber interface {
	Subscribe(ctx context.Context, handle Handler) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, handle Handler) error

// Subscribe implements Subscriber.
func (f SubscriberFunc) Subscribe(ctx context.Context, handle Handler) error {
	return f(ctx, handle)
}
