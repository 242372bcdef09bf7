package notify_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/notify"
	"github.com/goliatone/go-erp-session/storage"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context) ([]notify.Notification, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]notify.Notification)
	return items, args.Error(1)
}

func (m *MockService) MarkRead(ctx context.Context, id notify.ID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockService) MarkAllRead(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockService) Delete(ctx context.Context, id notify.ID) error {
	return m.Called(ctx, id).Error(0)
}

// pushSource captures the handler of the active subscription.
type pushSource struct {
	mu       sync.Mutex
	handle   notify.Handler
	attempts atomic.Int32
	ready    chan struct{}
	once     sync.Once
}

func newPushSource() *pushSource {
	return &pushSource{ready: make(chan struct{})}
}

func (s *pushSource) Subscribe(ctx context.Context, handle notify.Handler) error {
	s.attempts.Add(1)
	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()
	s.once.Do(func() { close(s.ready) })
	<-ctx.Done()
	return ctx.Err()
}

func (s *pushSource) deliver(t *testing.T, payload string) {
	t.Helper()
	select {
	case <-s.ready:
	case <-time.After(time.Second):
		t.Fatal("subscription never opened")
	}
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	h([]byte(payload))
}

func newStore(t *testing.T, p *session.Principal) *session.Store {
	t.Helper()
	store := session.NewStore(storage.NewMemory(), session.WithStoreLogger(session.NopLogger()))
	require.NoError(t, store.Hydrate(context.Background()))
	if p != nil {
		require.NoError(t, store.Save(context.Background(), p))
	}
	return store
}

func TestChannelFetchesOnStartAndClearsOnLogout(t *testing.T) {
	store := newStore(t, principalWith(session.RoleAdmin))
	svc := &MockService{}
	svc.On("List", mock.Anything).Return([]notify.Notification{
		note("1", false, session.RoleAdmin),
		note("2", true, session.RoleAll),
	}, nil).Once()

	ch := notify.NewChannel(store, svc)
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() { _ = ch.Stop() })

	require.Eventually(t, func() bool { return len(ch.Notifications()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, ch.UnreadCount())

	require.NoError(t, store.Clear(context.Background()))
	assert.Empty(t, ch.Notifications(), "list must be empty as soon as the principal is gone")
	svc.AssertExpectations(t)
}

func TestChannelRefetchesOnLogin(t *testing.T) {
	store := newStore(t, nil)
	svc := &MockService{}
	svc.On("List", mock.Anything).Return([]notify.Notification{note("9", false, session.RoleAccountant)}, nil).Once()

	ch := notify.NewChannel(store, svc)
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() { _ = ch.Stop() })

	assert.Empty(t, ch.Notifications())
	svc.AssertNotCalled(t, "List", mock.Anything)

	require.NoError(t, store.Save(context.Background(), principalWith(session.RoleAccountant)))
	require.Eventually(t, func() bool { return len(ch.Notifications()) == 1 }, time.Second, 5*time.Millisecond)
	svc.AssertExpectations(t)
}

func TestChannelDeduplicatesFetchAndPush(t *testing.T) {
	store := newStore(t, principalWith(session.RoleAdmin))
	svc := &MockService{}
	svc.On("List", mock.Anything).Return([]notify.Notification{note("1", false, session.RoleAdmin)}, nil).Once()
	src := newPushSource()

	var arrivals atomic.Int32
	ch := notify.NewChannel(store, svc,
		notify.WithSubscriber(src),
		notify.WithArrivalHandler(func(notify.Notification) { arrivals.Add(1) }),
	)
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() { _ = ch.Stop() })

	require.Eventually(t, func() bool { return len(ch.Notifications()) == 1 }, time.Second, 5*time.Millisecond)

	src.deliver(t, `{"id":1,"content":"dup","recipientRoles":["ADMIN"]}`)
	src.deliver(t, `{"id":2,"content":"fresh","recipientRoles":["ALL"]}`)
	src.deliver(t, `{"id":2,"content":"fresh","recipientRoles":["ALL"]}`)
	src.deliver(t, `garbage`)

	assert.Len(t, ch.Notifications(), 2)
	assert.Equal(t, int32(1), arrivals.Load())
}

func TestChannelListChangeHandlerFollowsMutations(t *testing.T) {
	store := newStore(t, principalWith(session.RoleAdmin))
	svc := &MockService{}
	svc.On("List", mock.Anything).Return([]notify.Notification{note("1", false, session.RoleAdmin)}, nil).Once()
	src := newPushSource()

	var changes atomic.Int32
	ch := notify.NewChannel(store, svc,
		notify.WithSubscriber(src),
		notify.WithListChangeHandler(func() { changes.Add(1) }),
	)
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() { _ = ch.Stop() })

	require.Eventually(t, func() bool { return changes.Load() >= 1 }, time.Second, 5*time.Millisecond)
	before := changes.Load()

	src.deliver(t, `{"id":2,"content":"fresh","recipientRoles":["ALL"]}`)
	require.Eventually(t, func() bool { return changes.Load() > before }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, ch.UnreadCount())

	afterPush := changes.Load()
	require.NoError(t, store.Clear(context.Background()))
	require.Eventually(t, func() bool { return changes.Load() > afterPush }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, ch.UnreadCount())
}

func TestChannelFiltersPushByCurrentRoles(t *testing.T) {
	store := newStore(t, principalWith(session.RoleAccountant))
	svc := &MockService{}
	svc.On("List", mock.Anything).Return([]notify.Notification{}, nil)
	src := newPushSource()

	ch := notify.NewChannel(store, svc, notify.WithSubscriber(src))
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() { _ = ch.Stop() })

	src.deliver(t, `{"id":10,"content":"for admins","recipientRoles":["ADMIN"]}`)
	src.deliver(t, `{"id":11,"content":"for all","recipientRoles":["ALL"]}`)

	visible := ch.Notifications()
	require.Len(t, visible, 1)
	assert.Equal(t, notify.ID("11"), visible[0].ID)
}

func TestChannelIgnoresEventsAfterStop(t *testing.T) {
	store := newStore(t, principalWith(session.RoleAdmin))
	svc := &MockService{}
	svc.On("List", mock.Anything).Return([]notify.Notification{}, nil)
	src := newPushSource()

	ch := notify.NewChannel(store, svc, notify.WithSubscriber(src))
	require.NoError(t, ch.Start(context.Background()))
	src.deliver(t, `{"id":1,"content":"before","recipientRoles":["ALL"]}`)
	require.Len(t, ch.Notifications(), 1)

	require.NoError(t, ch.Stop())
	require.NoError(t, ch.Stop())

	assert.NotPanics(t, func() {
		src.deliver(t, `{"id":2,"content":"after","recipientRoles":["ALL"]}`)
	})
	assert.Empty(t, ch.Notifications())

	err := ch.MarkAllAsRead(context.Background())
	assert.True(t, notify.IsChannelStopped(err))
	svc.AssertNotCalled(t, "MarkAllRead", mock.Anything)
}

// slowService resolves List only after release is closed, honouring ctx.
type slowService struct {
	MockService
	release chan struct{}
	entered chan struct{}
	result  []notify.Notification
}

func (s *slowService) List(ctx context.Context) ([]notify.Notification, error) {
	close(s.entered)
	select {
	case <-s.release:
		return s.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestChannelStopCancelsInflightFetch(t *testing.T) {
	store := newStore(t, principalWith(session.RoleAdmin))
	svc := &slowService{
		release: make(chan struct{}),
		entered: make(chan struct{}),
		result:  []notify.Notification{note("late", false, session.RoleAdmin)},
	}

	ch := notify.NewChannel(store, svc)
	require.NoError(t, ch.Start(context.Background()))
	<-svc.entered
	assert.True(t, ch.Loading())

	stopped := make(chan error, 1)
	go func() { stopped <- ch.Stop() }()

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return while a fetch was in flight")
	}

	close(svc.release)
	assert.Empty(t, ch.Notifications())
	assert.False(t, ch.Loading())
	assert.NoError(t, ch.Err())
}

func TestChannelDropsFetchFromPreviousIdentity(t *testing.T) {
	store := newStore(t, principalWith(session.RoleAdmin))
	svc := &slowService{
		release: make(chan struct{}),
		entered: make(chan struct{}),
		result:  []notify.Notification{note("admin-only", false)},
	}

	ch := notify.NewChannel(store, svc)
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() { _ = ch.Stop() })
	<-svc.entered

	require.NoError(t, store.Clear(context.Background()))
	close(svc.release)

	assert.Never(t, func() bool { return len(ch.Notifications()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestChannelReconnectsWithFixedDelay(t *testing.T) {
	store := newStore(t, principalWith(session.RoleAdmin))
	svc := &MockService{}
	svc.On("List", mock.Anything).Return([]notify.Notification{}, nil)

	var attempts atomic.Int32
	connected := make(chan notify.Handler, 1)
	sub := notify.SubscriberFunc(func(ctx context.Context, handle notify.Handler) error {
		if attempts.Add(1) < 3 {
			return errors.New("connection refused")
		}
		connected <- handle
		<-ctx.Done()
		return ctx.Err()
	})

	ch := notify.NewChannel(store, svc,
		notify.WithSubscriber(sub),
		notify.WithReconnectDelay(10*time.Millisecond),
	)
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() { _ = ch.Stop() })

	var handle notify.Handler
	select {
	case handle = <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not re-established")
	}
	assert.Equal(t, int32(3), attempts.Load())

	handle([]byte(`{"id":5,"content":"after reconnect","recipientRoles":["ALL"]}`))
	assert.Len(t, ch.Notifications(), 1)
}

func TestChannelStopEndsReconnectLoop(t *testing.T) {
	store := newStore(t, nil)
	svc := &MockService{}

	var attempts atomic.Int32
	sub := notify.SubscriberFunc(func(ctx context.Context, handle notify.Handler) error {
		attempts.Add(1)
		return errors.New("broker down")
	})

	ch := notify.NewChannel(store, svc,
		notify.WithSubscriber(sub),
		notify.WithReconnectDelay(5*time.Millisecond),
	)
	require.NoError(t, ch.Start(context.Background()))
	require.Eventually(t, func() bool { return attempts.Load() >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, ch.Stop())
	after := attempts.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, attempts.Load())
}

func TestChannelStartTwice(t *testing.T) {
	store := newStore(t, nil)
	ch := notify.NewChannel(store, &MockService{})
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() { _ = ch.Stop() })

	err := ch.Start(context.Background())
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, notify.TextCodeChannelStarted, richErr.TextCode)
}

func TestChannelMarkAllAsRead(t *testing.T) {
	store := newStore(t, principalWith(session.RoleAdmin))
	svc := &MockService{}
	svc.On("List", mock.Anything).Return([]notify.Notification{
		note("1", false, session.RoleAdmin),
		note("2", false, session.RoleAdmin),
		note("3", true, session.RoleAdmin),
	}, nil).Once()
	svc.On("MarkAllRead", mock.Anything).Return(nil).Once()

	ch := notify.NewChannel(store, svc)
	require.NoError(t, ch.Refresh(context.Background()))
	t.Cleanup(func() { _ = ch.Stop() })
	require.Equal(t, 2, ch.UnreadCount())

	require.NoError(t, ch.MarkAllAsRead(context.Background()))

	items := ch.Notifications()
	require.Len(t, items, 3)
	for _, n := range items {
		assert.True(t, n.IsRead)
	}
	assert.Equal(t, 0, ch.UnreadCount())
	svc.AssertExpectations(t)
}

func TestChannelMutationsApplyOnlyAfterRemoteSuccess(t *testing.T) {
	store := newStore(t, principalWith(session.RoleAdmin))
	svc := &MockService{}
	svc.On("List", mock.Anything).Return([]notify.Notification{
		note("1", false, session.RoleAdmin),
		note("2", false, session.RoleAdmin),
	}, nil).Once()
	remoteErr := errors.New("boom")
	svc.On("MarkRead", mock.Anything, notify.ID("1")).Return(remoteErr).Once()
	svc.On("Delete", mock.Anything, notify.ID("2")).Return(nil).Once()

	ch := notify.NewChannel(store, svc)
	t.Cleanup(func() { _ = ch.Stop() })
	require.NoError(t, ch.Refresh(context.Background()))

	err := ch.MarkAsRead(context.Background(), "1")
	assert.ErrorIs(t, err, remoteErr)
	assert.ErrorIs(t, ch.Err(), remoteErr)
	assert.Equal(t, 2, ch.UnreadCount(), "failed mutation leaves local state untouched")

	require.NoError(t, ch.Delete(context.Background(), "2"))
	assert.Equal(t, []notify.ID{"1"}, ids(ch.Notifications()))
	svc.AssertExpectations(t)
}
