package application

import (
	"context"
	"fmt"
	"strings"

	"storefront-insights/internal/domain"
	"storefront-insights/internal/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Reconciler merges one fetched catalog page into the entity store
type Reconciler struct {
	store  ports.EntityStore
	logger zerolog.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(store ports.EntityStore, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger,
	}
}

// Reconcile upserts customers, then products, then orders. Orders are
// resolved against customers already stored for the tenant, so customers
// must go first. Orders without a resolvable customer are skipped.
func (r *Reconciler) Reconcile(ctx context.Context, tenantID string, page *domain.CatalogPage) (domain.ReconcileResult, error) {
	var result domain.ReconcileResult
	if page == nil {
		return result, nil
	}

	for _, c := range page.Customers {
		externalID, err := parseExternalID("customer", c.ID)
		if err != nil {
			return result, err
		}

		_, err = r.store.UpsertCustomer(ctx, tenantID, externalID, domain.CustomerFields{
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Email:     c.Email,
		})
		if err != nil {
			return result, err
		}
		result.Customers++
	}

	for _, p := range page.Products {
		externalID, err := parseExternalID("product", p.ID)
		if err != nil {
			return result, err
		}

		price := decimal.Zero
		if p.FirstVariantPrice != "" {
			if price, err = parseAmount("product", p.ID, p.FirstVariantPrice); err != nil {
				return result, err
			}
		}

		var category *string
		if productType := strings.TrimSpace(p.ProductType); productType != "" {
			category = &productType
		}

		_, err = r.store.UpsertProduct(ctx, tenantID, externalID, domain.ProductFields{
			Title:    p.Title,
			Vendor:   p.Vendor,
			Category: category,
			Price:    price,
		})
		if err != nil {
			return result, err
		}
		result.Products++
	}

	for _, o := range page.Orders {
		orderID, err := parseExternalID("order", o.ID)
		if err != nil {
			return result, err
		}

		customerID := domain.ExternalID(strings.TrimSpace(o.CustomerID))
		if customerID == "" {
			r.logger.Debug().Str("order", orderID).Msg("Skipping order without customer")
			result.SkippedOrders++
			continue
		}

		customer, err := r.store.FindCustomerByExternalID(ctx, tenantID, customerID)
		if err != nil {
			return result, err
		}
		if customer == nil {
			r.logger.Debug().
				Str("order", orderID).
				Str("customer", o.CustomerID).
				Msg("Skipping order with unresolved customer")
			result.SkippedOrders++
			continue
		}

		total, err := parseAmount("order", o.ID, o.TotalPrice)
		if err != nil {
			return result, err
		}

		_, err = r.store.UpsertOrder(ctx, tenantID, orderID, customer.ID, domain.OrderFields{
			Name:       o.Name,
			TotalPrice: total,
			OrderedAt:  o.CreatedAt,
		})
		if err != nil {
			return result, err
		}
		result.Orders++
	}

	r.logger.Info().
		Str("tenantId", tenantID).
		Int("customers", result.Customers).
		Int("products", result.Products).
		Int("orders", result.Orders).
		Int("skippedOrders", result.SkippedOrders).
		Msg("Reconciled catalog page")

	return result, nil
}

func parseExternalID(resource, globalID string) (string, error) {
	id := domain.ExternalID(strings.TrimSpace(globalID))
	if id == "" {
		return "", &domain.UpstreamFetchError{
			Op:  "reconcile " + resource,
			Err: fmt.Errorf("malformed %s id %q", resource, globalID),
		}
	}
	return id, nil
}

func parseAmount(resource, globalID, amount string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, &domain.UpstreamFetchError{
			Op:  "reconcile " + resource,
			Err: fmt.Errorf("failed to parse amount %q of %s: %w", amount, globalID, err),
		}
	}
	if value.IsNegative() {
		return decimal.Zero, &domain.UpstreamFetchError{
			Op:  "reconcile " + resource,
			Err: fmt.Errorf("negative amount %s for %s", value, globalID),
		}
	}
	return value, nil
}
