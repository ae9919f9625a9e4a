package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andrewabdallah/taskmanager/pkg/logger"
)

// ArgCache is a reserved argument name: set it to false to bypass the cache
// for a single call. It is never part of a cache key.
const ArgCache = "cache"

// fallbackTTL applies when neither the wrap nor the process default sets one.
const fallbackTTL = 300 * time.Second

const keyDelimiter = "-"

// Args carries the named arguments of a cached computation.
type Args map[string]any

// ComputeFunc is a named computation over Args producing a JSON-serializable
// result.
type ComputeFunc[T any] func(ctx context.Context, args Args) (T, error)

// ReadThrough wraps computations with read-through caching. It performs no
// invalidation itself; entries expire by TTL or are removed by callers.
type ReadThrough struct {
	store      Store
	defaultTTL time.Duration
}

// NewReadThrough returns a ReadThrough over the given store. defaultTTL is
// the process-wide timeout applied when a wrap does not set its own; pass 0
// to fall back to the hardcoded default.
func NewReadThrough(store Store, defaultTTL time.Duration) *ReadThrough {
	return &ReadThrough{store: store, defaultTTL: defaultTTL}
}

func (rt *ReadThrough) effectiveTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl > 0:
		return ttl
	case rt.defaultTTL > 0:
		return rt.defaultTTL
	default:
		return fallbackTTL
	}
}

// Through wraps fn with read-through caching under rt.
//
// The cache key is built from name plus the string form of each key
// parameter's value, in declared order. If any key parameter is absent from
// a call's args, caching is skipped for that call (logged, not an error).
// A call with args[ArgCache] == false bypasses the cache entirely.
func Through[T any](rt *ReadThrough, name string, keys []string, ttl time.Duration, fn ComputeFunc[T]) ComputeFunc[T] {
	return func(ctx context.Context, args Args) (T, error) {
		if use, ok := args[ArgCache].(bool); ok && !use {
			return fn(ctx, args)
		}

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			v, ok := args[k]
			if !ok {
				logger.Warn(ctx, "cache key parameter missing, running uncached",
					"computation", name, "param", k)
				return fn(ctx, args)
			}
			parts = append(parts, fmt.Sprint(v))
		}
		key := name + ":" + strings.Join(parts, keyDelimiter)

		if b, err := rt.store.Get(ctx, key); err == nil {
			var out T
			if err := json.Unmarshal(b, &out); err == nil {
				logger.Debug(ctx, "cache hit", "key", key)
				return out, nil
			}
			logger.Warn(ctx, "cache entry undecodable, recomputing", "key", key)
		} else if !errors.Is(err, ErrMiss) {
			logger.Debug(ctx, "cache get failed", "key", key, "error", err)
		}

		out, err := fn(ctx, args)
		if err != nil {
			return out, err
		}
		if b, merr := json.Marshal(out); merr == nil {
			effective := rt.effectiveTTL(ttl)
			if serr := rt.store.Set(ctx, key, b, effective); serr != nil {
				logger.Debug(ctx, "cache set failed", "key", key, "error", serr)
			} else {
				logger.Debug(ctx, "cache set", "key", key, "ttl", effective)
			}
		}
		return out, nil
	}
}

// Key returns the cache key Through would use for the given key-parameter
// values, for callers that need to delete an entry explicitly.
func Key(name string, values ...string) string {
	return name + ":" + strings.Join(values, keyDelimiter)
}
