package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-erp-session/storage"
)

func exerciseBackend(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Get(ctx, "user")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, b.Set(ctx, "user", []byte(`{"email":"a@b.co"}`)))
	got, err := b.Get(ctx, "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@b.co"}`, string(got))

	require.NoError(t, b.Set(ctx, "user", []byte(`{"email":"c@d.co"}`)))
	got, err = b.Get(ctx, "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"c@d.co"}`, string(got))

	require.NoError(t, b.Delete(ctx, "user"))
	require.NoError(t, b.Delete(ctx, "user"))
	_, err = b.Get(ctx, "user")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, b.Set(ctx, "", []byte("x")), storage.ErrInvalidKey)
	assert.ErrorIs(t, b.Set(ctx, "../escape", []byte("x")), storage.ErrInvalidKey)
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, storage.NewMemory())
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value))
	value[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	f, err := storage.NewFile(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, f.Dir())

	exerciseBackend(t, f)
}

func TestFileBackendPermissions(t *testing.T) {
	dir := t.TempDir()
	f, err := storage.NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, f.Set(context.Background(), "user", []byte("{}")))

	info, err := os.Stat(filepath.Join(dir, "user.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	s, err := storage.OpenSQLite(ctx, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseBackend(t, s)
}

func TestSQLiteBackendPersistsAcrossHandles(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "session.db")

	first, err := storage.OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "user", []byte(`{"email":"a@b.co"}`)))
	require.NoError(t, first.Close())

	second, err := storage.OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	got, err := second.Get(ctx, "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@b.co"}`, string(got))
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	client, err := storage.ConnectRedis(ctx, storage.RedisConfig{Addr: addr, DB: 15, Timeout: 500 * time.Millisecond})
	if err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisBackend(t *testing.T) {
	client := redisClient(t)
	prefix := "erp:test:" + t.Name() + ":"
	exerciseBackend(t, storage.NewRedis(client, storage.WithRedisPrefix(prefix)))
}

func TestRedisBackendTTL(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	prefix := "erp:test:ttl:"
	r := storage.NewRedis(client, storage.WithRedisPrefix(prefix), storage.WithRedisTTL(time.Minute))

	require.NoError(t, r.Set(ctx, "redirect", []byte("/orders")))
	t.Cleanup(func() { _ = r.Delete(ctx, "redirect") })

	ttl, err := client.TTL(ctx, prefix+"redirect").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
