// Package kv is the string key-value medium user records are persisted in.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("kv: key not found")

// Store holds whole string values under string keys. Get returns ErrNotFound
// for a missing key; Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Expiring is implemented by stores that can drop a key on their own.
type Expiring interface {
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// SetWithTTL writes key so that it disappears after ttl when s supports
// expiry. Other stores keep the key until it is deleted.
func SetWithTTL(ctx context.Context, s Store, key, value string, ttl time.Duration) error {
	if e, ok := s.(Expiring); ok && ttl > 0 {
		return e.SetWithTTL(ctx, key, value, ttl)
	}
	return s.Set(ctx, key, value)
}
