package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// TitleMapCache implements domain.TitleMapCache as one JSON document so
// every process linking picks sees the same title map.
type TitleMapCache struct {
	c   *Client
	ttl time.Duration
}

// NewTitleMapCache creates a TitleMapCache. A zero ttl keeps the map until it
// is invalidated.
func NewTitleMapCache(c *Client, ttl time.Duration) *TitleMapCache {
	return &TitleMapCache{c: c, ttl: ttl}
}

func (tc *TitleMapCache) key() string { return tc.c.Key("titlemap") }

// Get returns the cached map or domain.ErrNotFound.
func (tc *TitleMapCache) Get(ctx context.Context) (domain.TitleMap, error) {
	data, err := tc.c.Underlying().Get(ctx, tc.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get title map: %w", err)
	}
	var m domain.TitleMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("redis: decode title map: %w", err)
	}
	return m, nil
}

// Set stores m.
func (tc *TitleMapCache) Set(ctx context.Context, m domain.TitleMap) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: encode title map: %w", err)
	}
	if err := tc.c.Underlying().Set(ctx, tc.key(), data, tc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set title map: %w", err)
	}
	return nil
}

// Invalidate deletes the cached map.
func (tc *TitleMapCache) Invalidate(ctx context.Context) error {
	if err := tc.c.Underlying().Del(ctx, tc.key()).Err(); err != nil {
		return fmt.Errorf("redis: invalidate title map: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.TitleMapCache = (*TitleMapCache)(nil)
