package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-erp-session/storage"
)

const (
	// DefaultRedirectKey is the storage key of the redirect-back slot.
	DefaultRedirectKey = "redirect_back"
	// DefaultRedirectTTL bounds how long a denied path is remembered.
	DefaultRedirectTTL = 5 * time.Minute
)

type redirectEntry struct {
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RedirectStore remembers the path a denied navigation asked for so a later
// successful login can return there. The entry is read at most once.
type RedirectStore struct {
	backend Backend
	key     string
	ttl     time.Duration
	now     func() time.Time
	logger  Logger
}

// RedirectOption customizes a RedirectStore.
type RedirectOption func(*RedirectStore)

// WithRedirectKey overrides the storage key.
func WithRedirectKey(key string) RedirectOption {
	return func(r *RedirectStore) {
		if key != "" {
			r.key = key
		}
	}
}

// WithRedirectTTL overrides how long a path is remembered.
func WithRedirectTTL(ttl time.Duration) RedirectOption {
	return func(r *RedirectStore) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRedirectClock injects a custom clock.
func WithRedirectClock(now func() time.Time) RedirectOption {
	return func(r *RedirectStore) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRedirectLogger sets the logger
func WithRedirectLogger(logger Logger) RedirectOption {
	return func(r *RedirectStore) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedirectStore persists the redirect-back slot in backend.
func NewRedirectStore(backend Backend, opts ...RedirectOption) *RedirectStore {
	r := &RedirectStore{
		backend: backend,
		key:     DefaultRedirectKey,
		ttl:     DefaultRedirectTTL,
		now:     time.Now,
		logger:  defLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Remember stores path, replacing any earlier entry. Only local absolute
// paths are kept.
func (r *RedirectStore) Remember(ctx context.Context, path string) error {
	path, ok := cleanRedirectPath(path)
	if !ok {
		r.logger.Debug("ignoring redirect target", "path", path)
		return nil
	}
	data, err := json.Marshal(redirectEntry{Path: path, ExpiresAt: r.now().Add(r.ttl)})
	if err != nil {
		return err
	}
	return r.backend.Set(ctx, r.key, data)
}

// Peek returns the remembered path without consuming it.
func (r *RedirectStore) Peek(ctx context.Context) (string, bool) {
	entry, ok := r.read(ctx)
	if !ok {
		return "", false
	}
	return entry.Path, true
}

// Consume returns the remembered path and discards it.
func (r *RedirectStore) Consume(ctx context.Context) (string, bool) {
	entry, ok := r.read(ctx)
	r.Discard(ctx)
	if !ok {
		return "", false
	}
	return entry.Path, true
}

// Discard drops the remembered path, if any.
func (r *RedirectStore) Discard(ctx context.Context) {
	if err := r.backend.Delete(ctx, r.key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn("failed to discard redirect", "error", err)
	}
}

func (r *RedirectStore) read(ctx context.Context) (redirectEntry, bool) {
	var entry redirectEntry
	data, err := r.backend.Get(ctx, r.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("failed to read redirect", "error", err)
		}
		return entry, false
	}
	if err := json.Unmarshal(data, &entry); err != nil || entry.Path == "" {
		r.Discard(ctx)
		return entry, false
	}
	if !r.now().Before(entry.ExpiresAt) {
		r.Discard(ctx)
		return entry, false
	}
	return entry, true
}

// cleanRedirectPath rejects anything that could leave the application, like
// absolute URLs or protocol relative paths.
func cleanRedirectPath(path string) (string, bool) {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, `/\`) {
		return path, false
	}
	return path, true
}
