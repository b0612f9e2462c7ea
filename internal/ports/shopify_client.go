package ports

import (
	"context"
	"net/http"

	"storefront-insights/internal/domain"
)

// CatalogFetcher fetches the first page of products, customers and orders
// for a shop from the commerce platform
type CatalogFetcher interface {
	FetchPage(ctx context.Context, shop string, pageSize int) (*domain.CatalogPage, error)
}

// WebhookVerifier checks the authenticity of a webhook delivery
type WebhookVerifier interface {
	Verify(payload []byte, headers http.Header, secret string) bool
}
