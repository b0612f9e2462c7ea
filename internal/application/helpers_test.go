package application

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"storefront-insights/internal/domain"
	"storefront-insights/internal/infrastructure/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *repository.SQLEntityStore {
	t.Helper()

	ctx := context.Background()
	store, err := repository.Open(ctx, repository.DialectSQLite, filepath.Join(t.TempDir(), "insights.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(ctx))
	return store
}

func newTestTenant(t *testing.T, store *repository.SQLEntityStore, shop string) *domain.Tenant {
	t.Helper()

	tenant, err := store.UpsertTenant(context.Background(), shop)
	require.NoError(t, err)
	return tenant
}

func strPtr(s string) *string {
	return &s
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()

	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

// scenarioPage has two customers, two products and two orders (100 and 50)
func scenarioPage(t *testing.T) *domain.CatalogPage {
	return &domain.CatalogPage{
		Customers: []domain.ExternalCustomer{
			{ID: "gid://shopify/Customer/1", FirstName: strPtr("Ada"), LastName: strPtr("Lovelace"), Email: strPtr("ada@example.com")},
			{ID: "gid://shopify/Customer/2", FirstName: strPtr("Alan"), LastName: strPtr("Turing")},
		},
		Products: []domain.ExternalProduct{
			{ID: "gid://shopify/Product/10", Title: "Runner", Vendor: "Acme", ProductType: "Shoes", FirstVariantPrice: "60.00"},
			{ID: "gid://shopify/Product/11", Title: "Gift card", Vendor: "Acme", FirstVariantPrice: "40.00"},
		},
		Orders: []domain.ExternalOrder{
			{ID: "gid://shopify/Order/100", Name: "#1001", CreatedAt: mustTime(t, "2024-05-01T10:00:00Z"), TotalPrice: "100.00", CustomerID: "gid://shopify/Customer/1"},
			{ID: "gid://shopify/Order/101", Name: "#1002", CreatedAt: mustTime(t, "2024-05-03T15:30:00Z"), TotalPrice: "50.00", CustomerID: "gid://shopify/Customer/2"},
		},
	}
}

type fakeFetcher struct {
	page        *domain.CatalogPage
	err         error
	block       bool
	gotShop     string
	gotPageSize int
}

func (f *fakeFetcher) FetchPage(ctx context.Context, shop string, pageSize int) (*domain.CatalogPage, error) {
	f.gotShop = shop
	f.gotPageSize = pageSize
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.page, f.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []domain.TenantChange
}

func (n *recordingNotifier) Publish(ctx context.Context, change domain.TenantChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
}

type syncObservation struct {
	outcome string
	result  domain.ReconcileResult
}

type recordingMetrics struct {
	syncs    []syncObservation
	webhooks map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{webhooks: make(map[string]int)}
}

func (m *recordingMetrics) ObserveSync(outcome string, duration time.Duration, result domain.ReconcileResult) {
	m.syncs = append(m.syncs, syncObservation{outcome: outcome, result: result})
}

func (m *recordingMetrics) ObserveWebhook(topic string, outcome domain.RecordOutcome) {
	m.webhooks[topic+"|"+string(outcome)]++
}

type recordingWebhookLog struct {
	deliveries []domain.WebhookDelivery
	err        error
}

func (l *recordingWebhookLog) LogWebhook(ctx context.Context, delivery *domain.WebhookDelivery) error {
	l.deliveries = append(l.deliveries, *delivery)
	return l.err
}

// memoryCache is an InsightCache backed by a map, counting hits. Like the
// Redis cache it keys values by a per-tenant generation.
type memoryCache struct {
	mu          sync.Mutex
	values      map[string][]byte
	generations map[string]int64
	hits        int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		values:      make(map[string][]byte),
		generations: make(map[string]int64),
	}
}

func memoryKey(tenantID string, generation int64, key string) string {
	return fmt.Sprintf("%s|%d|%s", tenantID, generation, key)
}

func (c *memoryCache) Get(ctx context.Context, tenantID, key string, dest interface{}) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gen := c.generations[tenantID]
	raw, ok := c.values[memoryKey(tenantID, gen, key)]
	if !ok {
		return gen, false, nil
	}
	c.hits++
	return gen, true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, tenantID string, generation int64, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[memoryKey(tenantID, generation, key)] = raw
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[tenantID]++
	return nil
}
