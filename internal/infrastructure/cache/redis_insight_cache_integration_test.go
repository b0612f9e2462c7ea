//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"storefront-insights/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationCache(t *testing.T) *RedisInsightCache {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	return NewRedisInsightCache(client, time.Minute)
}

func TestRedisInsightCache_RoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := newIntegrationCache(t)
	tenantID := uuid.NewString()

	var got domain.Totals
	gen, found, err := cache.Get(ctx, tenantID, "totals", &got)
	require.NoError(t, err)
	require.False(t, found)

	totals := domain.Totals{TotalCustomers: 2, TotalOrders: 2, TotalRevenue: decimal.NewFromInt(150)}
	require.NoError(t, cache.Set(ctx, tenantID, gen, "totals", totals))

	_, found, err = cache.Get(ctx, tenantID, "totals", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 2, got.TotalOrders)
	assert.True(t, totals.TotalRevenue.Equal(got.TotalRevenue))

	require.NoError(t, cache.Invalidate(ctx, tenantID))

	_, found, err = cache.Get(ctx, tenantID, "totals", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisInsightCache_ValueComputedBeforeInvalidateIsNotServed(t *testing.T) {
	ctx := context.Background()
	cache := newIntegrationCache(t)
	tenantID := uuid.NewString()

	var got domain.Totals
	gen, found, err := cache.Get(ctx, tenantID, "totals", &got)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, cache.Invalidate(ctx, tenantID))
	require.NoError(t, cache.Set(ctx, tenantID, gen, "totals", domain.Totals{TotalOrders: 2}))

	_, found, err = cache.Get(ctx, tenantID, "totals", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisInsightCache_TenantsAreIsolated(t *testing.T) {
	ctx := context.Background()
	cache := newIntegrationCache(t)
	a, b := uuid.NewString(), uuid.NewString()

	require.NoError(t, cache.Set(ctx, a, 0, "funnel", domain.Funnel{ConversionRate: "50.00"}))
	require.NoError(t, cache.Invalidate(ctx, b))

	var got domain.Funnel
	_, found, err := cache.Get(ctx, a, "funnel", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "50.00", got.ConversionRate)
}
