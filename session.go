package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/goliatone/go-erp-session/storage"
)

// Store owns the single persisted principal slot. It is the only shared
// mutable resource of the package: writes go through to the backend and
// then fan out to listeners before the write call returns.
type Store struct {
	backend   Backend
	key       string
	inspector TokenInspector
	logger    Logger
	now       func() time.Time

	writeMu sync.Mutex

	mu        sync.RWMutex
	current   *Principal
	listeners []listenerEntry
	nextID    uint64

	hydrateOnce sync.Once
	hydrateErr  error
	readyOnce   sync.Once
	ready       chan struct{}
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithStorageKey overrides the well known key of the session blob.
func WithStorageKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithTokenInspector sets how access tokens are decoded during hydration.
func WithTokenInspector(inspector TokenInspector) StoreOption {
	return func(s *Store) {
		if inspector != nil {
			s.inspector = inspector
		}
	}
}

// WithStoreLogger sets the logger
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns a Store persisting to backend. Call Hydrate once at boot.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend:   backend,
		key:       DefaultStorageKey,
		inspector: UnverifiedInspector{},
		logger:    defLogger(),
		now:       time.Now,
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Key returns the storage key of the session blob.
func (s *Store) Key() string {
	return s.key
}

// Ready is closed once the first hydration (or first write) completes.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// IsReady reports whether the store has resolved its initial state.
func (s *Store) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Hydrate loads the persisted principal. Only the first call does any work.
// A corrupt blob, a principal without roles, or an expired token are all
// discarded so the session starts out unauthenticated.
func (s *Store) Hydrate(ctx context.Context) error {
	s.hydrateOnce.Do(func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		defer s.markReady()

		p, err := s.load(ctx)
		if err != nil {
			s.hydrateErr = err
			return
		}
		s.replace(p)
	})
	return s.hydrateErr
}

// Reload re-reads the backend, picking up writes made by another process.
// Listeners fire only when the identity or its credential changed. It is
// serialized with Save and Clear so a stale read never overwrites them.
func (s *Store) Reload(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.markReady()

	s.mu.RLock()
	changed := !samePrincipal(s.current, p)
	s.mu.RUnlock()

	if changed {
		s.replace(p)
	}
	return nil
}

func (s *Store) load(ctx context.Context) (*Principal, error) {
	data, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	p, err := UnmarshalPrincipal(data)
	if err != nil {
		s.logger.Warn("discarding unreadable session blob", "key", s.key, "error", err)
		s.discard(ctx)
		return nil, nil
	}

	if !p.IsAuthenticated() {
		s.logger.Info("discarding session without credential or roles", "email", p.Email)
		s.discard(ctx)
		return nil, nil
	}

	claims, err := s.inspector.Inspect(p.AccessToken)
	if err != nil {
		// opaque or unverifiable tokens are left for the API to judge
		s.logger.Debug("access token not inspectable", "error", err)
		return p, nil
	}

	if claims.Expired(s.now()) {
		s.logger.Info("discarding session with expired credential", "email", p.Email, "expired_at", claims.ExpiresAt)
		s.discard(ctx)
		return nil, nil
	}

	return p, nil
}

func (s *Store) discard(ctx context.Context) {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.logger.Warn("failed to delete session blob", "key", s.key, "error", err)
	}
}

// Current returns a copy of the principal, or nil when nobody is logged in.
func (s *Store) Current() *Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// AccessToken returns the bearer credential of the current principal.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.AccessToken
}

// HasAnyRole is true iff the current principal holds one of required.
func (s *Store) HasAnyRole(required ...Role) bool {
	return Authorize(s.Current(), required)
}

// Save persists p, replacing any previous principal, then notifies listeners.
func (s *Store) Save(ctx context.Context, p *Principal) error {
	if p == nil {
		return s.Clear(ctx)
	}

	data, err := MarshalPrincipal(p)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.backend.Set(ctx, s.key, data); err != nil {
		return err
	}
	s.markReady()
	s.replace(p.Clone())
	return nil
}

// Clear removes the persisted principal. Safe to call with no session.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.backend.Delete(ctx, s.key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	s.markReady()

	s.mu.RLock()
	had := s.current != nil
	s.mu.RUnlock()
	if had {
		s.replace(nil)
	}
	return nil
}

// Subscribe registers a listener and returns a function removing it.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(e listenerEntry) bool {
			return e.id == id
		})
	}
}

func (s *Store) replace(p *Principal) {
	s.mu.Lock()
	s.current = p
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(p.Clone())
	}
}

func samePrincipal(a, b *Principal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Email != b.Email || a.AccessToken != b.AccessToken {
		return false
	}
	return slices.Equal(a.RoleSet().Slice(), b.RoleSet().Slice())
}
