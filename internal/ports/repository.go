package ports

import (
	"context"
	"encoding/json"
	"time"

	"storefront-insights/internal/domain"

	"github.com/shopspring/decimal"
)

// EntityStore defines the relational persistence contract.
// Every upsert is keyed by (tenantID, externalID) and atomic per call.
// Lookups return nil, nil when nothing matches.
type EntityStore interface {
	// Tenant operations
	UpsertTenant(ctx context.Context, shopName string) (*domain.Tenant, error)
	FindTenantByShop(ctx context.Context, shopName string) (*domain.Tenant, error)

	// Customer operations
	UpsertCustomer(ctx context.Context, tenantID, externalID string, fields domain.CustomerFields) (*domain.Customer, error)
	FindCustomerByExternalID(ctx context.Context, tenantID, externalID string) (*domain.Customer, error)
	ListCustomersByIDs(ctx context.Context, tenantID string, ids []string) ([]*domain.Customer, error)
	CountCustomers(ctx context.Context, tenantID string) (int64, error)

	// Product operations
	UpsertProduct(ctx context.Context, tenantID, externalID string, fields domain.ProductFields) (*domain.Product, error)
	ListProducts(ctx context.Context, tenantID string) ([]*domain.Product, error)

	// Order operations
	UpsertOrder(ctx context.Context, tenantID, externalID, customerID string, fields domain.OrderFields) (*domain.Order, error)
	CountOrders(ctx context.Context, tenantID string) (int64, error)
	SumOrderRevenue(ctx context.Context, tenantID string) (decimal.Decimal, error)
	SpendByCustomer(ctx context.Context, tenantID string, limit int) ([]domain.CustomerSpend, error)
	ListOrdersBetween(ctx context.Context, tenantID string, start, end time.Time) ([]*domain.Order, error)

	// Event operations
	AppendEvent(ctx context.Context, tenantID, eventName string, payload json.RawMessage) (*domain.CustomEvent, error)
	CountEvents(ctx context.Context, tenantID, eventName string) (int64, error)
}

// WebhookLog keeps an audit trail of every webhook delivery
type WebhookLog interface {
	LogWebhook(ctx context.Context, delivery *domain.WebhookDelivery) error
}

// InsightCache stores computed insight results per tenant. Values are
// versioned by a per-tenant generation that Invalidate advances.
type InsightCache interface {
	// Get decodes a cached value into dest and reports whether it was found,
	// along with the generation it looked in
	Get(ctx context.Context, tenantID, key string, dest interface{}) (generation int64, found bool, err error)
	// Set stores a value computed while generation was current. Values from
	// an invalidated generation are never served.
	Set(ctx context.Context, tenantID string, generation int64, key string, value interface{}) error
	// Invalidate drops every cached value for the tenant
	Invalidate(ctx context.Context, tenantID string) error
}

// ChangeNotifier publishes tenant data changes to interested components
type ChangeNotifier interface {
	Publish(ctx context.Context, change domain.TenantChange)
}

// Metrics records operational counters
type Metrics interface {
	ObserveSync(outcome string, duration time.Duration, result domain.ReconcileResult)
	ObserveWebhook(topic string, outcome domain.RecordOutcome)
}
