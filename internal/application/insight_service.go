package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"storefront-insights/internal/domain"
	"storefront-insights/internal/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TopCustomersLimit is the length of the top customers ranking
const TopCustomersLimit = 5

const dateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// InsightService computes read-only aggregates for one tenant at a time
type InsightService struct {
	store  ports.EntityStore
	cache  ports.InsightCache // optional
	logger zerolog.Logger
}

// NewInsightService creates a new insight service. cache may be nil.
func NewInsightService(store ports.EntityStore, cache ports.InsightCache, logger zerolog.Logger) *InsightService {
	return &InsightService{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// ResolveTenant returns the tenant for a shop or a NotFoundError
func (s *InsightService) ResolveTenant(ctx context.Context, shop string) (*domain.Tenant, error) {
	tenant, err := s.store.FindTenantByShop(ctx, shop)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, &domain.NotFoundError{Resource: "tenant", ID: shop}
	}
	return tenant, nil
}

// Totals returns customer and order counts with the revenue sum
func (s *InsightService) Totals(ctx context.Context, tenantID string) (*domain.Totals, error) {
	return cached(ctx, s, tenantID, "totals", func() (*domain.Totals, error) {
		customers, err := s.store.CountCustomers(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		orders, err := s.store.CountOrders(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		revenue, err := s.store.SumOrderRevenue(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		average := decimal.Zero
		if orders > 0 {
			average = revenue.Div(decimal.NewFromInt(orders)).Round(2)
		}

		return &domain.Totals{
			TotalCustomers:    customers,
			TotalOrders:       orders,
			TotalRevenue:      revenue,
			AverageOrderValue: average,
		}, nil
	})
}

// TopCustomers ranks customers by summed order totals, highest first.
// Equal spend is ordered by customer id.
func (s *InsightService) TopCustomers(ctx context.Context, tenantID string) ([]domain.TopCustomer, error) {
	return cached(ctx, s, tenantID, "top-customers", func() ([]domain.TopCustomer, error) {
		spend, err := s.store.SpendByCustomer(ctx, tenantID, TopCustomersLimit)
		if err != nil {
			return nil, err
		}
		if len(spend) == 0 {
			return []domain.TopCustomer{}, nil
		}

		ids := make([]string, len(spend))
		for i, cs := range spend {
			ids[i] = cs.CustomerID
		}
		customers, err := s.store.ListCustomersByIDs(ctx, tenantID, ids)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]*domain.Customer, len(customers))
		for _, c := range customers {
			byID[c.ID] = c
		}

		top := make([]domain.TopCustomer, 0, len(spend))
		for _, cs := range spend {
			customer, ok := byID[cs.CustomerID]
			if !ok {
				s.logger.Warn().Str("customerId", cs.CustomerID).Msg("Ranked customer not found")
				continue
			}
			top = append(top, domain.TopCustomer{
				Customer:   *customer,
				TotalSpent: cs.TotalSpent,
				OrderCount: cs.OrderCount,
			})
		}
		return top, nil
	})
}

// OrdersByDate returns orders placed within the range, newest first
func (s *InsightService) OrdersByDate(ctx context.Context, tenantID string, dates domain.DateRange) ([]*domain.Order, error) {
	key := fmt.Sprintf("orders-by-date:%d:%d", dates.Start.UnixNano(), dates.End.UnixNano())
	return cached(ctx, s, tenantID, key, func() ([]*domain.Order, error) {
		return s.store.ListOrdersBetween(ctx, tenantID, dates.Start, dates.End)
	})
}

// ParseDateRange validates raw startDate and endDate values. Both accept
// RFC 3339 or YYYY-MM-DD; a date-only end covers that whole day.
func ParseDateRange(startRaw, endRaw string) (domain.DateRange, error) {
	start, _, err := parseDate("startDate", startRaw)
	if err != nil {
		return domain.DateRange{}, err
	}
	end, dateOnly, err := parseDate("endDate", endRaw)
	if err != nil {
		return domain.DateRange{}, err
	}
	if dateOnly {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if start.After(end) {
		return domain.DateRange{}, &domain.ValidationError{Field: "startDate", Message: "must not be after endDate"}
	}
	return domain.DateRange{Start: start, End: end}, nil
}

func parseDate(field, raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, &domain.ValidationError{Field: field, Message: "is required"}
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, &domain.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%q is not an RFC 3339 timestamp or YYYY-MM-DD date", raw),
		}
	}
	return t.UTC(), false, nil
}

// RevenueByCategory estimates revenue per product category. Each categorized
// product receives total order revenue scaled by its share of the summed
// catalog price. This is a proportional estimate: orders carry no line items,
// so revenue cannot be traced to the products actually sold.
func (s *InsightService) RevenueByCategory(ctx context.Context, tenantID string) ([]domain.CategoryRevenue, error) {
	return cached(ctx, s, tenantID, "revenue-by-category", func() ([]domain.CategoryRevenue, error) {
		products, err := s.store.ListProducts(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		catalogValue := decimal.Zero
		for _, p := range products {
			catalogValue = catalogValue.Add(p.Price)
		}
		if !catalogValue.IsPositive() {
			return []domain.CategoryRevenue{}, nil
		}

		revenue, err := s.store.SumOrderRevenue(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		byCategory := make(map[string]decimal.Decimal)
		for _, p := range products {
			if p.Category == nil {
				continue
			}
			share := p.Price.Mul(revenue).Div(catalogValue)
			byCategory[*p.Category] = byCategory[*p.Category].Add(share)
		}

		result := make([]domain.CategoryRevenue, 0, len(byCategory))
		for name, value := range byCategory {
			result = append(result, domain.CategoryRevenue{
				Name:  name,
				Value: value.Round(0).IntPart(),
			})
		}
		sort.Slice(result, func(i, j int) bool {
			return result[i].Name < result[j].Name
		})
		return result, nil
	})
}

// Funnel compares started checkouts with stored orders. Abandoned checkouts
// go negative when more orders than checkout starts were seen.
func (s *InsightService) Funnel(ctx context.Context, tenantID string) (*domain.Funnel, error) {
	return cached(ctx, s, tenantID, "funnel", func() (*domain.Funnel, error) {
		started, err := s.store.CountEvents(ctx, tenantID, domain.TopicCheckoutsCreate)
		if err != nil {
			return nil, err
		}
		completed, err := s.store.CountOrders(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		rate := decimal.Zero
		if started > 0 {
			rate = decimal.NewFromInt(completed).Mul(hundred).Div(decimal.NewFromInt(started))
		}

		return &domain.Funnel{
			CheckoutsStarted:   started,
			CheckoutsCompleted: completed,
			AbandonedCheckouts: started - completed,
			ConversionRate:     rate.StringFixed(2),
		}, nil
	})
}

// HandleTenantChange drops cached insights of the changed tenant
func (s *InsightService) HandleTenantChange(ctx context.Context, change domain.TenantChange) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, change.TenantID); err != nil {
		s.logger.Error().Err(err).Str("tenantId", change.TenantID).Msg("Failed to invalidate insight cache")
		return
	}
	s.logger.Debug().
		Str("tenantId", change.TenantID).
		Str("source", string(change.Source)).
		Msg("Insight cache invalidated")
}

// cached serves key from the insight cache when present and stores fresh
// results otherwise. The result is stored under the generation read before
// compute, so a change published while computing orphans it. Cache failures
// fall through to compute.
func cached[T any](ctx context.Context, s *InsightService, tenantID, key string, compute func() (T, error)) (T, error) {
	if s.cache == nil {
		return compute()
	}

	var hit T
	generation, found, err := s.cache.Get(ctx, tenantID, key, &hit)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to read insight cache")
		return compute()
	}
	if found {
		return hit, nil
	}

	value, err := compute()
	if err != nil {
		return value, err
	}
	if err := s.cache.Set(ctx, tenantID, generation, key, value); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to write insight cache")
	}
	return value, nil
}
