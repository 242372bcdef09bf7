// Package storage provides key/value backends for the single session slot
// and the redirect-back slot. Every backend stores opaque bytes under a
// string key, Delete is idempotent and Get reports ErrNotFound for a
// missing key.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// ErrInvalidKey is returned for empty keys or keys that would escape the backend namespace.
var ErrInvalidKey = errors.New("storage: invalid key")

// Backend is implemented by every store in this package.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
