package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	session "github.com/goliatone/go-erp-session"
	"golang.org/x/sync/errgroup"
)

// DefaultReconnectDelay is the fixed pause between push reconnect attempts.
const DefaultReconnectDelay = 5 * time.Second

// PrincipalProvider is satisfied by *session.Store.
type PrincipalProvider interface {
	Current() *session.Principal
	Subscribe(fn session.Listener) func()
}

// Channel keeps the notification list of the current principal: a bulk
// fetch whenever the identity changes and one long lived push subscription
// while started. Stop tears both down and waits for them.
type Channel struct {
	principals     PrincipalProvider
	service        Service
	subscriber     Subscriber
	feed           *Feed
	logger         session.Logger
	reconnectDelay time.Duration
	onArrival      func(Notification)
	onChange       func()

	mu          sync.Mutex
	started     bool
	stopped     bool
	cancel      context.CancelFunc
	group       *errgroup.Group
	groupCtx    context.Context
	unsubscribe func()
	fetchCancel context.CancelFunc

	loading atomic.Bool
	errMu   sync.RWMutex
	lastErr error
}

// ChannelOption customizes a Channel.
type ChannelOption func(*Channel)

// WithSubscriber sets the push transport. Without one the channel only fetches.
func WithSubscriber(s Subscriber) ChannelOption {
	return func(c *Channel) {
		c.subscriber = s
	}
}

// WithReconnectDelay overrides DefaultReconnectDelay.
func WithReconnectDelay(d time.Duration) ChannelOption {
	return func(c *Channel) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithChannelLogger sets the logger
func WithChannelLogger(logger session.Logger) ChannelOption {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithArrivalHandler is called for every pushed notification that was merged.
func WithArrivalHandler(fn func(Notification)) ChannelOption {
	return func(c *Channel) {
		c.onArrival = fn
	}
}

// WithListChangeHandler is called after any change of the list. It runs on
// the reducer goroutine and must not call back into the Channel.
func WithListChangeHandler(fn func()) ChannelOption {
	return func(c *Channel) {
		c.onChange = fn
	}
}

// NewChannel builds a channel. Nothing runs until Start.
func NewChannel(principals PrincipalProvider, service Service, opts ...ChannelOption) *Channel {
	c := &Channel{
		principals:     principals,
		service:        service,
		logger:         session.NopLogger(),
		reconnectDelay: DefaultReconnectDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.feed = NewFeed(principals.Current,
		WithFeedLogger(c.logger),
		WithChangeHandler(c.onChange),
	)
	return c
}

// Start fetches for the current principal, follows identity changes and
// opens the push subscription. It may only be called once.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrChannelStopped.Clone()
	}
	if c.started {
		c.mu.Unlock()
		return ErrChannelStarted.Clone()
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	c.cancel = cancel
	c.group = group
	c.groupCtx = groupCtx
	c.unsubscribe = c.principals.Subscribe(c.identityChanged)
	c.mu.Unlock()

	c.identityChanged(c.principals.Current())

	if c.subscriber != nil {
		c.spawn(func() error {
			c.subscribeLoop(groupCtx)
			return nil
		})
	}

	c.logger.Debug("notification channel started")
	return nil
}

// spawn runs fn on the channel group unless Stop already began.
func (c *Channel) spawn(fn func() error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.group == nil {
		return false
	}
	c.group.Go(fn)
	return true
}

func (c *Channel) identityChanged(p *session.Principal) {
	generation := c.feed.Reset()

	c.mu.Lock()
	if c.fetchCancel != nil {
		c.fetchCancel()
		c.fetchCancel = nil
	}
	if c.stopped || c.groupCtx == nil || !p.IsAuthenticated() {
		c.mu.Unlock()
		c.loading.Store(false)
		return
	}
	fetchCtx, cancel := context.WithCancel(c.groupCtx)
	c.fetchCancel = cancel
	c.group.Go(func() error {
		defer cancel()
		c.fetch(fetchCtx, generation)
		return nil
	})
	c.mu.Unlock()
}

func (c *Channel) fetch(ctx context.Context, generation uint64) {
	c.loading.Store(true)
	defer c.loading.Store(false)

	items, err := c.service.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("failed to load notifications", "error", err)
		c.setErr(err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	c.setErr(nil)
	c.feed.Merge(generation, items)
}

func (c *Channel) subscribeLoop(ctx context.Context) {
	for {
		err := c.subscriber.Subscribe(ctx, func(payload []byte) {
			c.handlePayload(ctx, payload)
		})
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("notification subscription dropped, reconnecting", "delay", c.reconnectDelay.String(), "error", err)

		timer := time.NewTimer(c.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Channel) handlePayload(ctx context.Context, payload []byte) {
	if ctx.Err() != nil {
		return
	}
	n, err := Decode(payload)
	if err != nil {
		c.logger.Warn("ignoring malformed notification", "error", err)
		return
	}
	if c.feed.Push(n) && c.onArrival != nil {
		c.onArrival(n)
	}
}

// Refresh fetches synchronously into the current generation.
func (c *Channel) Refresh(ctx context.Context) error {
	if c.isStopped() {
		return ErrChannelStopped.Clone()
	}
	if !c.principals.Current().IsAuthenticated() {
		c.feed.Reset()
		return nil
	}
	generation := c.feed.Generation()
	c.loading.Store(true)
	defer c.loading.Store(false)

	items, err := c.service.List(ctx)
	if err != nil {
		c.logger.Error("failed to load notifications", "error", err)
		c.setErr(err)
		return err
	}
	c.setErr(nil)
	c.feed.Merge(generation, items)
	return nil
}

// MarkAsRead calls the API first and flips the local flag only on success.
func (c *Channel) MarkAsRead(ctx context.Context, id ID) error {
	if c.isStopped() {
		return ErrChannelStopped.Clone()
	}
	if err := c.service.MarkRead(ctx, id); err != nil {
		c.logger.Error("mark read failed", "id", id, "error", err)
		c.setErr(err)
		return err
	}
	c.feed.MarkRead(id)
	return nil
}

// MarkAllAsRead calls the API first and flips every local flag on success.
func (c *Channel) MarkAllAsRead(ctx context.Context) error {
	if c.isStopped() {
		return ErrChannelStopped.Clone()
	}
	if err := c.service.MarkAllRead(ctx); err != nil {
		c.logger.Error("mark all read failed", "error", err)
		c.setErr(err)
		return err
	}
	c.feed.MarkAllRead()
	return nil
}

// Delete calls the API first and removes the local entry on success.
func (c *Channel) Delete(ctx context.Context, id ID) error {
	if c.isStopped() {
		return ErrChannelStopped.Clone()
	}
	if err := c.service.Delete(ctx, id); err != nil {
		c.logger.Error("delete notification failed", "id", id, "error", err)
		c.setErr(err)
		return err
	}
	c.feed.Remove(id)
	return nil
}

// Notifications returns the visible list, newest first.
func (c *Channel) Notifications() []Notification {
	return c.feed.Notifications()
}

// UnreadCount counts visible unread notifications.
func (c *Channel) UnreadCount() int {
	return c.feed.UnreadCount()
}

// Loading reports an in-flight bulk fetch.
func (c *Channel) Loading() bool {
	return c.loading.Load()
}

// Err returns the last fetch or mutation failure, cleared by a good fetch.
func (c *Channel) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.lastErr
}

func (c *Channel) setErr(err error) {
	c.errMu.Lock()
	c.lastErr = err
	c.errMu.Unlock()
}

func (c *Channel) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Stop cancels the subscription and in-flight fetches, waits for them and
// closes the feed. Later pushes or fetch results are ignored. Safe to call
// more than once or without Start.
func (c *Channel) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	cancel, group, unsubscribe := c.cancel, c.group, c.unsubscribe
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	var err error
	if group != nil {
		err = group.Wait()
	}
	c.feed.Close()
	c.logger.Debug("notification channel stopped")
	return err
}
