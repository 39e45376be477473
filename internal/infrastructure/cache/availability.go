// Package cache provides a Redis-backed read cache for on-hand quantities.
//
// The cache serves only the availability fast path. Writers invalidate after
// commit; a short TTL bounds staleness if an invalidation is lost.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"stocklot/internal/domain/inventory"
	"stocklot/pkg/logger"
)

const defaultTTL = 30 * time.Second

// AvailabilityCache caches summary on-hand quantities in Redis.
type AvailabilityCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a new availability cache and verifies the connection.
func New(addr, password string, db int) (*AvailabilityCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &AvailabilityCache{rdb: rdb, ttl: defaultTTL}, nil
}

// Close closes the Redis connection.
func (c *AvailabilityCache) Close() error {
	return c.rdb.Close()
}

func cacheKey(key inventory.SummaryKey) string {
	return fmt.Sprintf("onhand:%s:%s:%s", key.WarehouseID, key.ProductID, key.VariationID)
}

// GetOnHand implements inventory.AvailabilityCache.
func (c *AvailabilityCache) GetOnHand(ctx context.Context, key inventory.SummaryKey) (int64, bool) {
	val, err := c.rdb.Get(ctx, cacheKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn(ctx, "availability cache read failed", "error", err)
		}
		return 0, false
	}

	qty, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return qty, true
}

// SetOnHand implements inventory.AvailabilityCache.
func (c *AvailabilityCache) SetOnHand(ctx context.Context, key inventory.SummaryKey, quantity int64) {
	if err := c.rdb.Set(ctx, cacheKey(key), quantity, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "availability cache write failed", "error", err)
	}
}

// Invalidate implements inventory.AvailabilityCache.
func (c *AvailabilityCache) Invalidate(ctx context.Context, key inventory.SummaryKey) {
	if err := c.rdb.Del(ctx, cacheKey(key)).Err(); err != nil {
		logger.Warn(ctx, "availability cache invalidation failed", "error", err)
	}
}

// Ensure interface compliance.
var _ inventory.AvailabilityCache = (*AvailabilityCache)(nil)
