package cache

import (
	"context"
	"net/url"
	"testing"
	"time"
)

// plainStore wraps MemoryStore but hides its pattern-deletion support.
type plainStore struct {
	inner *MemoryStore
}

func (s plainStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, key)
}

func (s plainStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.inner.Set(ctx, key, value, ttl)
}

func (s plainStore) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, keys...)
}

func (s plainStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.inner.Incr(ctx, key)
}

func TestRequestKeyIsDeterministic(t *testing.T) {
	ctx := context.Background()
	c := NewEndpointCache(NewMemoryStore(), "tasks", "", time.Minute)

	q1 := url.Values{"status": {"pending"}, "page": {"2"}}
	q2 := url.Values{"page": {"2"}, "status": {"pending"}}
	k1 := c.RequestKey(ctx, "1", "/api/v1/tasks", q1)
	k2 := c.RequestKey(ctx, "1", "/api/v1/tasks", q2)
	if k1 != k2 {
		t.Fatalf("parameter order must not affect the key: %q vs %q", k1, k2)
	}
}

func TestRequestKeyIgnoresFormat(t *testing.T) {
	ctx := context.Background()
	c := NewEndpointCache(NewMemoryStore(), "tasks", "", time.Minute)

	plain := c.RequestKey(ctx, "1", "/api/v1/tasks", url.Values{"status": {"pending"}})
	csv := c.RequestKey(ctx, "1", "/api/v1/tasks", url.Values{"status": {"pending"}, "format": {"csv"}})
	if plain != csv {
		t.Fatalf("format selector must not fragment the cache: %q vs %q", plain, csv)
	}
}

func TestRequestKeySeparatesPrincipals(t *testing.T) {
	ctx := context.Background()
	c := NewEndpointCache(NewMemoryStore(), "tasks", "", time.Minute)

	k1 := c.RequestKey(ctx, "1", "/api/v1/tasks", nil)
	k2 := c.RequestKey(ctx, "2", "/api/v1/tasks", nil)
	kAnon := c.RequestKey(ctx, AnonymousPrincipal, "/api/v1/tasks", nil)
	if k1 == k2 || k1 == kAnon {
		t.Fatalf("principals must have distinct keys: %q %q %q", k1, k2, kAnon)
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewEndpointCache(NewMemoryStore(), "tasks", "app", time.Minute)

	key := c.RequestKey(ctx, "1", "/api/v1/tasks", nil)
	var out []string
	if c.Get(ctx, key, &out) {
		t.Fatalf("unexpected hit on empty cache")
	}
	c.Set(ctx, key, []string{"a", "b"})
	if !c.Get(ctx, key, &out) {
		t.Fatalf("expected hit after Set")
	}
	if len(out) != 2 || out[0] != "a" {
		t.Fatalf("unexpected cached value %v", out)
	}
}

func TestInvalidateBumpsVersionAndPurges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := NewEndpointCache(store, "tasks", "", time.Minute)

	key := c.RequestKey(ctx, "1", "/api/v1/tasks", nil)
	c.Set(ctx, key, "cached")

	if err := c.Invalidate(ctx, "1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	newKey := c.RequestKey(ctx, "1", "/api/v1/tasks", nil)
	if newKey == key {
		t.Fatalf("invalidation must rotate the key")
	}
	var out string
	if c.Get(ctx, newKey, &out) {
		t.Fatalf("new key must start empty")
	}
	if c.Get(ctx, key, &out) {
		t.Fatalf("old entry should have been purged")
	}
}

func TestInvalidateLeavesOtherPrincipalsAlone(t *testing.T) {
	ctx := context.Background()
	c := NewEndpointCache(NewMemoryStore(), "tasks", "", time.Minute)

	other := c.RequestKey(ctx, "2", "/api/v1/tasks", nil)
	c.Set(ctx, other, "other")

	if err := c.Invalidate(ctx, "1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	var out string
	if !c.Get(ctx, other, &out) {
		t.Fatalf("other principal's entry must survive")
	}
}

func TestInvalidateEmptyScopeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := NewEndpointCache(NewMemoryStore(), "tasks", "", time.Minute)

	if err := c.Invalidate(ctx, "1"); err != nil {
		t.Fatalf("invalidate empty scope: %v", err)
	}
	if err := c.Invalidate(ctx, "1"); err != nil {
		t.Fatalf("second invalidate: %v", err)
	}
}

func TestInvalidateWithoutPatternSupportStillRotatesKeys(t *testing.T) {
	ctx := context.Background()
	store := plainStore{NewMemoryStore()}
	c := NewEndpointCache(store, "tasks", "", time.Minute)

	key := c.RequestKey(ctx, "1", "/api/v1/tasks", nil)
	c.Set(ctx, key, "cached")

	if err := c.Invalidate(ctx, "1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	newKey := c.RequestKey(ctx, "1", "/api/v1/tasks", nil)
	if newKey == key {
		t.Fatalf("version bump must rotate the key even without purge support")
	}
	var out string
	if c.Get(ctx, newKey, &out) {
		t.Fatalf("rotated key must miss")
	}
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"tasks:v*:1:*", "tasks:v3:1:/api/v1/tasks", true},
		{"tasks:v*:1:*", "tasks:v3:2:/api/v1/tasks", false},
		{"exact", "exact", true},
		{"exact", "other", false},
		{"*", "anything", true},
		{"a*c", "abc", true},
		{"a*c", "abcd", false},
	}
	for _, tt := range tests {
		if got := globMatch(tt.pattern, tt.s); got != tt.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
		}
	}
}
