package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-insights/internal/ports"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "insights"

// RedisInsightCache implements InsightCache using Redis. Each tenant has a
// generation counter that is part of every key; bumping it orphans all
// previously cached values, which then expire through their TTL.
type RedisInsightCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.InsightCache = (*RedisInsightCache)(nil)

// NewRedisInsightCache creates a new Redis-backed insight cache
func NewRedisInsightCache(client *redis.Client, ttl time.Duration) *RedisInsightCache {
	return &RedisInsightCache{
		client: client,
		ttl:    ttl,
	}
}

func generationKey(tenantID string) string {
	return fmt.Sprintf("%s:%s:generation", keyPrefix, tenantID)
}

func valueKey(tenantID string, generation int64, key string) string {
	return fmt.Sprintf("%s:%s:%d:%s", keyPrefix, tenantID, generation, key)
}

func (c *RedisInsightCache) generation(ctx context.Context, tenantID string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return gen, nil
}

// Get decodes a cached value into dest
func (c *RedisInsightCache) Get(ctx context.Context, tenantID, key string, dest interface{}) (int64, bool, error) {
	gen, err := c.generation(ctx, tenantID)
	if err != nil {
		return 0, false, err
	}

	raw, err := c.client.Get(ctx, valueKey(tenantID, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gen, false, nil
	}
	if err != nil {
		return gen, false, fmt.Errorf("failed to read cached insight: %w", err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return gen, false, fmt.Errorf("failed to decode cached insight: %w", err)
	}
	return gen, true, nil
}

// Set stores a value under the generation it was computed in. If the tenant
// was invalidated meanwhile the key is already orphaned and is never read.
func (c *RedisInsightCache) Set(ctx context.Context, tenantID string, generation int64, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode insight: %w", err)
	}

	if err := c.client.Set(ctx, valueKey(tenantID, generation, key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache insight: %w", err)
	}
	return nil
}

// Invalidate bumps the tenant's generation
func (c *RedisInsightCache) Invalidate(ctx context.Context, tenantID string) error {
	if err := c.client.Incr(ctx, generationKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate insights: %w", err)
	}
	return nil
}
