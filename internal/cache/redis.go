// Package cache stores gateway payment statuses in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pkordes/carpool/backend/internal/domain"
)

const keyPrefix = "carpool:payment-status:"

// StatusCache is a Redis-backed cache of domain.GatewayPayment values.
type StatusCache struct {
	rdb *redis.Client
}

// NewStatusCache wraps an existing client.
func NewStatusCache(rdb *redis.Client) *StatusCache {
	return &StatusCache{rdb: rdb}
}

// Connect parses a redis:// URL, opens a client and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache.Connect: parse url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache.Connect: ping: %w", err)
	}
	return rdb, nil
}

// Get returns the cached payment and whether it was present.
func (c *StatusCache) Get(ctx context.Context, id string) (domain.GatewayPayment, bool, error) {
	raw, err := c.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GatewayPayment{}, false, nil
	}
	if err != nil {
		return domain.GatewayPayment{}, false, fmt.Errorf("cache.StatusCache.Get: %w", err)
	}
	var p domain.GatewayPayment
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.GatewayPayment{}, false, fmt.Errorf("cache.StatusCache.Get: decode: %w", err)
	}
	return p, true, nil
}

// Set stores p for ttl.
func (c *StatusCache) Set(ctx context.Context, p domain.GatewayPayment, ttl time.Duration) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cache.StatusCache.Set: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, keyPrefix+p.ID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache.StatusCache.Set: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable. Used by /readyz.
func (c *StatusCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
