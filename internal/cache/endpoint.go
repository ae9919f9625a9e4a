package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/andrewabdallah/taskmanager/pkg/logger"
)

// AnonymousPrincipal is the cache-key sentinel for unauthenticated requests.
const AnonymousPrincipal = "anonymous"

// EndpointCache caches per-request responses for one resource type, scoped
// to a principal. Keys embed a per-scope version counter so invalidation
// never needs to enumerate keys: bumping the version orphans every entry in
// the scope, and orphans age out by TTL. A best-effort physical purge runs
// when the backend supports pattern deletion.
type EndpointCache struct {
	store    Store
	resource string
	prefix   string
	ttl      time.Duration
}

// NewEndpointCache returns an EndpointCache for one resource. prefix is an
// optional extra key namespace; ttl 0 keeps entries until purged.
func NewEndpointCache(store Store, resource, prefix string, ttl time.Duration) *EndpointCache {
	return &EndpointCache{store: store, resource: resource, prefix: prefix, ttl: ttl}
}

func (c *EndpointCache) prefixPart() string {
	if c.prefix == "" {
		return ""
	}
	return c.prefix + ":"
}

func (c *EndpointCache) versionKey(principal string) string {
	return fmt.Sprintf("%sver:%s:%s", c.prefixPart(), c.resource, principal)
}

func (c *EndpointCache) version(ctx context.Context, principal string) int64 {
	b, err := c.store.Get(ctx, c.versionKey(principal))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			logger.Debug(ctx, "cache version lookup failed", "resource", c.resource, "error", err)
		}
		return 0
	}
	n, _ := strconv.ParseInt(string(b), 10, 64)
	return n
}

// RequestKey derives a deterministic key from the resource, the principal
// (AnonymousPrincipal works as the unauthenticated sentinel), and the request
// path plus its query parameters sorted by name. The output-format selector
// is dropped so format negotiation never fragments the cache.
func (c *EndpointCache) RequestKey(ctx context.Context, principal, path string, query url.Values) string {
	q := make(url.Values, len(query))
	for name, vals := range query {
		if name == "format" {
			continue
		}
		q[name] = vals
	}
	full := path
	if enc := q.Encode(); enc != "" { // Encode sorts parameters by name
		full = path + "?" + enc
	}
	return fmt.Sprintf("%s%s:v%d:%s:%s",
		c.prefixPart(), c.resource, c.version(ctx, principal), principal, full)
}

// Get decodes the cached value under key into dst, reporting whether there
// was a usable hit.
func (c *EndpointCache) Get(ctx context.Context, key string, dst any) bool {
	b, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			logger.Debug(ctx, "cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logger.Warn(ctx, "cache entry undecodable", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores v under key with the endpoint TTL. Failures are logged, not
// returned: a response that could not be cached is still a valid response.
func (c *EndpointCache) Set(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Warn(ctx, "cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
		logger.Debug(ctx, "cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached entry for the principal's scope by bumping
// its version counter, then best-effort purges the stale keys. Invalidating
// an already-empty scope is a no-op; calling it twice is safe.
func (c *EndpointCache) Invalidate(ctx context.Context, principal string) error {
	if _, err := c.store.Incr(ctx, c.versionKey(principal)); err != nil {
		return fmt.Errorf("bump cache version: %w", err)
	}
	c.purge(ctx, principal)
	return nil
}

// purge physically removes versioned keys for the scope. Backends that
// cannot enumerate keys by pattern degrade to a logged warning and a no-op;
// correctness is unaffected because the version bump already happened.
func (c *EndpointCache) purge(ctx context.Context, principal string) {
	pd, ok := c.store.(PatternDeleter)
	if !ok {
		logger.Warn(ctx, "cache backend does not support pattern key deletion, stale entries expire by TTL",
			"resource", c.resource)
		return
	}
	pattern := fmt.Sprintf("%s%s:v*:%s:*", c.prefixPart(), c.resource, principal)
	if n, err := pd.DeletePattern(ctx, pattern); err != nil {
		logger.Debug(ctx, "cache purge failed", "pattern", pattern, "error", err)
	} else if n > 0 {
		logger.Debug(ctx, "cache purged", "pattern", pattern, "keys", n)
	}
}

// DeleteKeys removes specific cache entries outside the versioned scope,
// e.g. read-through keys owned by the same resource.
func (c *EndpointCache) DeleteKeys(ctx context.Context, keys ...string) {
	if err := c.store.Delete(ctx, keys...); err != nil {
		logger.Debug(ctx, "cache delete failed", "error", err)
	}
}
