package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront-insights/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSyncService(t *testing.T, fetcher *fakeFetcher, timeout time.Duration) (*SyncService, *recordingNotifier, *recordingMetrics) {
	t.Helper()

	store := newTestStore(t)
	notifier := &recordingNotifier{}
	metrics := newRecordingMetrics()
	svc := NewSyncService(
		store,
		fetcher,
		NewReconciler(store, zerolog.Nop()),
		notifier,
		metrics,
		SyncOptions{Shop: "demo.myshopify.com", PageSize: 10, Timeout: timeout},
		zerolog.Nop(),
	)
	return svc, notifier, metrics
}

func TestSyncRun_Success(t *testing.T) {
	fetcher := &fakeFetcher{page: scenarioPage(t)}
	svc, notifier, metrics := newTestSyncService(t, fetcher, time.Second)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "demo.myshopify.com", fetcher.gotShop)
	assert.Equal(t, 10, fetcher.gotPageSize)

	assert.NotEmpty(t, result.TenantID)
	assert.Equal(t, "demo.myshopify.com", result.Shop)
	assert.Equal(t, domain.ReconcileResult{Customers: 2, Products: 2, Orders: 2}, result.ReconcileResult)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))

	tenant, err := svc.store.FindTenantByShop(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, tenant.ID, result.TenantID)

	require.Len(t, notifier.changes, 1)
	assert.Equal(t, domain.ChangeSourceSync, notifier.changes[0].Source)

	require.Len(t, metrics.syncs, 1)
	assert.Equal(t, SyncOutcomeSuccess, metrics.syncs[0].outcome)
	assert.Equal(t, 2, metrics.syncs[0].result.Orders)
}

func TestSyncRun_RerunIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{page: scenarioPage(t)}
	svc, _, _ := newTestSyncService(t, fetcher, time.Second)
	ctx := context.Background()

	first, err := svc.Run(ctx)
	require.NoError(t, err)
	second, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.TenantID, second.TenantID)

	orders, err := svc.store.CountOrders(ctx, first.TenantID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, orders)
}

func TestSyncRun_FetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	svc, notifier, metrics := newTestSyncService(t, fetcher, time.Second)

	result, err := svc.Run(context.Background())
	assert.Nil(t, result)
	var upstream *domain.UpstreamFetchError
	require.True(t, errors.As(err, &upstream), "got %v", err)
	assert.Equal(t, "fetch catalog page", upstream.Op)

	assert.Empty(t, notifier.changes)
	require.Len(t, metrics.syncs, 1)
	assert.Equal(t, SyncOutcomeFailure, metrics.syncs[0].outcome)
}

func TestSyncRun_FetchTimeout(t *testing.T) {
	fetcher := &fakeFetcher{block: true}
	svc, _, _ := newTestSyncService(t, fetcher, 20*time.Millisecond)

	_, err := svc.Run(context.Background())
	var upstream *domain.UpstreamFetchError
	require.True(t, errors.As(err, &upstream), "got %v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSyncRun_PartialPassStillPublishesChange(t *testing.T) {
	page := scenarioPage(t)
	page.Products[0].FirstVariantPrice = "oops"
	svc, notifier, metrics := newTestSyncService(t, &fakeFetcher{page: page}, time.Second)

	_, err := svc.Run(context.Background())
	var upstream *domain.UpstreamFetchError
	require.True(t, errors.As(err, &upstream), "got %v", err)

	require.Len(t, notifier.changes, 1)
	require.Len(t, metrics.syncs, 1)
	assert.Equal(t, SyncOutcomeFailure, metrics.syncs[0].outcome)
	assert.Equal(t, 2, metrics.syncs[0].result.Customers)
}
