package domain

import (
	"strings"
	"time"
)

// CatalogPage is one page of data fetched from the commerce platform.
// Identifiers are the platform's global ids (gid://shopify/Customer/123).
type CatalogPage struct {
	Products  []ExternalProduct
	Customers []ExternalCustomer
	Orders    []ExternalOrder
}

// ExternalProduct is a product as returned by the platform
type ExternalProduct struct {
	ID          string
	Title       string
	Vendor      string
	ProductType string
	// FirstVariantPrice is empty when the product has no variants
	FirstVariantPrice string
}

// ExternalCustomer is a customer as returned by the platform
type ExternalCustomer struct {
	ID        string
	FirstName *string
	LastName  *string
	Email     *string
}

// ExternalOrder is an order as returned by the platform
type ExternalOrder struct {
	ID         string
	Name       string
	CreatedAt  time.Time
	TotalPrice string
	CustomerID string // Empty when the order has no customer
}

// ExternalID returns the trailing segment of a slash-delimited global id.
// Ids without a slash are returned unchanged.
func ExternalID(globalID string) string {
	if i := strings.LastIndex(globalID, "/"); i >= 0 {
		return globalID[i+1:]
	}
	return globalID
}
