package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Totals is the headline metrics card data
type Totals struct {
	TotalCustomers    int64           `json:"totalCustomers"`
	TotalOrders       int64           `json:"totalOrders"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
}

// TopCustomer is a customer together with their order aggregate
type TopCustomer struct {
	Customer
	TotalSpent decimal.Decimal `json:"totalSpent"`
	OrderCount int64           `json:"orderCount"`
}

// CategoryRevenue is one slice of the revenue-by-category chart
type CategoryRevenue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Funnel is the checkout conversion summary
type Funnel struct {
	CheckoutsStarted   int64  `json:"checkoutsStarted"`
	CheckoutsCompleted int64  `json:"checkoutsCompleted"`
	AbandonedCheckouts int64  `json:"abandonedCheckouts"`
	ConversionRate     string `json:"conversionRate"` // Percentage with two decimals
}

// DateRange is an inclusive placement-time window
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ReconcileResult counts what one reconciliation pass stored
type ReconcileResult struct {
	Customers     int `json:"customers"`
	Products      int `json:"products"`
	Orders        int `json:"orders"`
	SkippedOrders int `json:"skippedOrders"`
}

// SyncResult is the outcome of one sync pass
type SyncResult struct {
	TenantID   string    `json:"tenantId"`
	Shop       string    `json:"shop"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	ReconcileResult
}
