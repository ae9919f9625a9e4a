package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Store.Get when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a string-keyed byte store with per-entry TTL.
type Store interface {
	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key for ttl (0 means no expiry).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Incr atomically increments the integer stored at key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
}

// PatternDeleter is an optional Store capability: bulk deletion of keys
// matching a glob-style pattern. Backends without it degrade invalidation
// purges to a no-op (entries then age out by TTL).
type PatternDeleter interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
}
