package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	session "github.com/goliatone/go-erp-session"
	"github.com/goliatone/go-erp-session/storage"
)

func newRedirects(backend session.Backend, now func() time.Time) *session.RedirectStore {
	return session.NewRedirectStore(backend,
		session.WithRedirectLogger(session.NopLogger()),
		session.WithRedirectClock(now),
	)
}

func TestGuardWaitsForHydration(t *testing.T) {
	backend := storage.NewMemory()
	seedPrincipal(t, backend, accountant("tok"))
	store := session.NewStore(backend, session.WithStoreLogger(session.NopLogger()))

	var transitions []session.GuardTransition
	guard := session.NewGuard(store, nil, []session.Role{session.RoleAccountant},
		session.WithGuardLogger(session.NopLogger()),
		session.WithGuardHook(func(_ context.Context, tr session.GuardTransition) {
			transitions = append(transitions, tr)
		}),
	)

	done := make(chan *session.Decision, 1)
	go func() {
		d, err := guard.Resolve(context.Background(), "/account/invoiceList")
		if err == nil {
			done <- d
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("guard resolved before the store hydrated")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, session.GuardLoading, guard.State())
	assert.Nil(t, guard.Decision())

	require.NoError(t, store.Hydrate(context.Background()))

	select {
	case d := <-done:
		require.NotNil(t, d)
		assert.True(t, d.Allowed())
	case <-time.After(time.Second):
		t.Fatal("guard did not resolve after hydration")
	}

	require.Len(t, transitions, 1)
	assert.Equal(t, session.GuardLoading, transitions[0].From)
	assert.Equal(t, session.GuardAuthorized, transitions[0].To)
}

func TestGuardCancelledContextStaysLoading(t *testing.T) {
	store := session.NewStore(storage.NewMemory(), session.WithStoreLogger(session.NopLogger()))
	guard := session.NewGuard(store, nil, nil, session.WithGuardLogger(session.NopLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := guard.Resolve(ctx, "/account")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, session.GuardLoading, guard.State())
}

func TestGuardDeniesAnonymousAndRemembersPath(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	store := hydratedStore(t, backend)
	redirects := newRedirects(backend, time.Now)

	guard := session.NewGuard(store, redirects, []session.Role{session.RoleAdmin},
		session.WithGuardLogger(session.NopLogger()),
		session.WithLoginPath("/signin"),
	)

	d, err := guard.Resolve(ctx, "/account/usersList")
	require.NoError(t, err)
	assert.Equal(t, session.GuardDenied, d.State)
	assert.Equal(t, "/signin", d.RedirectTo)
	assert.True(t, session.IsAuthError(d.Reason))

	assert.Equal(t, "/account/usersList", session.ResumeTarget(ctx, redirects, "/account"))

	path, ok := redirects.Consume(ctx)
	require.True(t, ok)
	assert.Equal(t, "/account/usersList", path)

	_, ok = redirects.Consume(ctx)
	assert.False(t, ok, "redirect is consumed at most once")
	assert.Equal(t, "/account", session.ResumeTarget(ctx, redirects, "/account"))
}

func TestGuardDeniesRoleMismatch(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	store := hydratedStore(t, backend)
	require.NoError(t, store.Save(ctx, accountant("tok")))

	guard := session.NewGuard(store, newRedirects(backend, time.Now), []session.Role{session.RoleAdmin, session.RoleSalesManager},
		session.WithGuardLogger(session.NopLogger()),
	)

	d, err := guard.Resolve(ctx, "/account/customerList")
	require.NoError(t, err)
	assert.False(t, d.Allowed())
	assert.True(t, session.IsPermissionError(d.Reason))
	assert.Equal(t, session.DefaultLoginPath, d.RedirectTo)
	require.NotNil(t, d.Principal)
	assert.Equal(t, "ana@example.com", d.Principal.Email)
}

func TestGuardEmptyAllowListAdmitsAnyAuthenticated(t *testing.T) {
	ctx := context.Background()
	store := hydratedStore(t, storage.NewMemory())
	require.NoError(t, store.Save(ctx, accountant("tok")))

	guard := session.NewGuard(store, nil, nil, session.WithGuardLogger(session.NopLogger()))
	d, err := guard.Resolve(ctx, "/account")
	require.NoError(t, err)
	assert.True(t, d.Allowed())
}

func TestGuardAuthorizedDiscardsPendingRedirect(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	store := hydratedStore(t, backend)
	redirects := newRedirects(backend, time.Now)
	require.NoError(t, redirects.Remember(ctx, "/account/ordersList"))
	require.NoError(t, store.Save(ctx, accountant("tok")))

	guard := session.NewGuard(store, redirects, []session.Role{session.RoleAccountant}, session.WithGuardLogger(session.NopLogger()))
	d, err := guard.Resolve(ctx, "/account/invoiceList")
	require.NoError(t, err)
	assert.True(t, d.Allowed())

	_, ok := redirects.Peek(ctx)
	assert.False(t, ok)
}

func TestGuardResolvesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := hydratedStore(t, storage.NewMemory())

	var mu sync.Mutex
	hooks := 0
	guard := session.NewGuard(store, nil, []session.Role{session.RoleAccountant},
		session.WithGuardLogger(session.NopLogger()),
		session.WithGuardHook(func(context.Context, session.GuardTransition) {
			mu.Lock()
			hooks++
			mu.Unlock()
		}),
	)

	first, err := guard.Resolve(ctx, "/account/invoiceList")
	require.NoError(t, err)
	assert.Equal(t, session.GuardDenied, first.State)

	// a later login does not flip an already resolved guard
	require.NoError(t, store.Save(ctx, accountant("tok")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := guard.Resolve(ctx, "/account/invoiceList")
			assert.NoError(t, err)
			assert.Equal(t, session.GuardDenied, d.State)
		}()
	}
	wg.Wait()

	assert.Equal(t, session.GuardDenied, guard.State())
	assert.Equal(t, 1, hooks)
}

func TestGuardRecordsActivity(t *testing.T) {
	ctx := context.Background()
	store := hydratedStore(t, storage.NewMemory())
	require.NoError(t, store.Save(ctx, accountant("tok")))

	var events []session.ActivityEvent
	guard := session.NewGuard(store, nil, nil,
		session.WithGuardLogger(session.NopLogger()),
		session.WithGuardActivitySink(session.ActivitySinkFunc(func(_ context.Context, e session.ActivityEvent) error {
			events = append(events, e)
			return nil
		})),
	)
	_, err := guard.Resolve(ctx, "/account")
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, session.ActivityEventGuardResolved, events[0].EventType)
	assert.Equal(t, "authorized", events[0].Metadata["state"])
	assert.False(t, events[0].OccurredAt.IsZero())
}
