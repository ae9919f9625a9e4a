package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix  = "session:"
	defaultSessionTTL = 24 * time.Hour
)

// Principal is the authenticated caller of a request.
type Principal struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Staff    bool   `json:"staff"`
}

// CacheID returns the principal's cache-key form, or the anonymous sentinel.
func (p Principal) CacheID() string {
	if p.ID == 0 {
		return "anonymous"
	}
	return strconv.FormatInt(p.ID, 10)
}

// Store manages sessions in Redis. Each session maps to the principal it
// was issued for.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore returns a new session store.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Create stores a new session for the principal and returns its ID.
func (s *Store) Create(ctx context.Context, p Principal) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+id, payload, s.ttl).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// Get resolves a session ID to its principal. ok is false for missing or
// expired sessions.
func (s *Store) Get(ctx context.Context, id string) (Principal, bool) {
	b, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		return Principal{}, false
	}
	var p Principal
	if err := json.Unmarshal(b, &p); err != nil {
		return Principal{}, false
	}
	return p, true
}

// Delete removes a session by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+id).Err()
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
