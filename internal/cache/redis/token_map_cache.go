package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polytrack/polytrack/internal/domain"
)

const tokenMapKey = "polytrack:token_map"

// TokenMapCache implements domain.TokenMapCache by storing the whole
// catalogue snapshot as one JSON blob. The catalogue is a few thousand
// entries; a single GET beats per-token round trips on every resolve.
type TokenMapCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.TokenMapCache = (*TokenMapCache)(nil)

// NewTokenMapCache creates a TokenMapCache backed by the given Client. ttl
// bounds snapshot staleness; zero means 10 minutes.
func NewTokenMapCache(c *Client, ttl time.Duration) *TokenMapCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TokenMapCache{rdb: c.Underlying(), ttl: ttl}
}

// Set stores the catalogue snapshot.
func (tc *TokenMapCache) Set(ctx context.Context, m domain.TokenMap) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal token map: %w", err)
	}
	if err := tc.rdb.Set(ctx, tokenMapKey, data, tc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set token map: %w", err)
	}
	return nil
}

// Get returns the cached snapshot, or domain.ErrNotFound when the key is
// missing or expired.
func (tc *TokenMapCache) Get(ctx context.Context) (domain.TokenMap, error) {
	data, err := tc.rdb.Get(ctx, tokenMapKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get token map: %w", err)
	}

	var m domain.TokenMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("redis: unmarshal token map: %w", err)
	}
	return m, nil
}
