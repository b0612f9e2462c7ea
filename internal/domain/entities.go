package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Tenant represents one connected storefront
type Tenant struct {
	ID        string    `json:"id"`
	ShopName  string    `json:"shopName"` // Shop domain, e.g. example.myshopify.com
	CreatedAt time.Time `json:"createdAt"`
}

// Customer is a storefront customer keyed by (TenantID, ShopifyCustomerID)
type Customer struct {
	ID                string    `json:"id"`
	ShopifyCustomerID string    `json:"shopifyCustomerId"`
	FirstName         *string   `json:"firstName"`
	LastName          *string   `json:"lastName"`
	Email             *string   `json:"email"`
	TenantID          string    `json:"tenantId"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// CustomerFields are the mutable customer attributes refreshed on every sync
type CustomerFields struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// Product is a catalog product keyed by (TenantID, ShopifyProductID)
type Product struct {
	ID               string          `json:"id"`
	ShopifyProductID string          `json:"shopifyProductId"`
	Title            string          `json:"title"`
	Vendor           string          `json:"vendor"`
	Category         *string         `json:"category"` // nil when the product has no type
	Price            decimal.Decimal `json:"price"`    // Price of the first variant
	TenantID         string          `json:"tenantId"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// ProductFields are the mutable product attributes
type ProductFields struct {
	Title    string
	Vendor   string
	Category *string
	Price    decimal.Decimal
}

// Order is a placed order keyed by (TenantID, ShopifyOrderID). It always
// belongs to a customer of the same tenant.
type Order struct {
	ID             string          `json:"id"`
	ShopifyOrderID string          `json:"shopifyOrderId"`
	Name           string          `json:"name"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	OrderedAt      time.Time       `json:"orderedAt"`
	CustomerID     string          `json:"customerId"`
	TenantID       string          `json:"tenantId"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// OrderFields are the mutable order attributes
type OrderFields struct {
	Name       string
	TotalPrice decimal.Decimal
	OrderedAt  time.Time
}

// CustomEvent is one webhook notification. Rows are append-only.
type CustomEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"eventName"` // Webhook topic, e.g. checkouts/create
	EventData json.RawMessage `json:"eventData"`
	TenantID  string          `json:"tenantId"`
	CreatedAt time.Time       `json:"createdAt"`
}

// CustomerSpend is the per-customer order aggregate used for ranking
type CustomerSpend struct {
	CustomerID string
	TotalSpent decimal.Decimal
	OrderCount int64
}
