package pubsub

import (
	"context"
	"fmt"
	"sync"

	"storefront-insights/internal/domain"
	"storefront-insights/internal/ports"

	"github.com/rs/zerolog"
)

// ChangeHandler is invoked for every matching tenant change
type ChangeHandler func(ctx context.Context, change domain.TenantChange)

// ChangeFilter filters tenant changes
type ChangeFilter struct {
	Sources  []domain.ChangeSource // Filter by write path
	TenantID string                // Filter by tenant
}

type subscription struct {
	id      string
	filter  *ChangeFilter
	handler ChangeHandler
}

// ChangeFeed fans tenant changes out to subscribers. Handlers run
// synchronously inside Publish, so a subscriber has observed the change
// before the publishing write path returns.
type ChangeFeed struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	logger        zerolog.Logger
	nextID        int64
	idMu          sync.Mutex
}

var _ ports.ChangeNotifier = (*ChangeFeed)(nil)

// NewChangeFeed creates a new change feed
func NewChangeFeed(logger zerolog.Logger) *ChangeFeed {
	return &ChangeFeed{
		subscriptions: make(map[string]*subscription),
		logger:        logger,
	}
}

// Subscribe registers a handler and returns a function that removes it
func (f *ChangeFeed) Subscribe(filter *ChangeFilter, handler ChangeHandler) func() {
	f.idMu.Lock()
	id := f.generateID()
	f.idMu.Unlock()

	f.mu.Lock()
	f.subscriptions[id] = &subscription{id: id, filter: filter, handler: handler}
	f.mu.Unlock()

	f.logger.Debug().
		Str("subscriptionId", id).
		Interface("filter", filter).
		Msg("Change subscription created")

	return func() { f.Unsubscribe(id) }
}

// Unsubscribe removes a subscription
func (f *ChangeFeed) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.subscriptions[id]; !exists {
		return
	}
	delete(f.subscriptions, id)

	f.logger.Debug().
		Str("subscriptionId", id).
		Msg("Change subscription removed")
}

// Publish delivers a change to every matching subscriber
func (f *ChangeFeed) Publish(ctx context.Context, change domain.TenantChange) {
	f.mu.RLock()
	matched := make([]*subscription, 0, len(f.subscriptions))
	for _, sub := range f.subscriptions {
		if matchesFilter(change, sub.filter) {
			matched = append(matched, sub)
		}
	}
	f.mu.RUnlock()

	for _, sub := range matched {
		sub.handler(ctx, change)
	}

	if len(matched) > 0 {
		f.logger.Debug().
			Str("tenantId", change.TenantID).
			Str("source", string(change.Source)).
			Int("subscribers", len(matched)).
			Msg("Published tenant change")
	}
}

// matchesFilter checks if a change matches the subscription filter
func matchesFilter(change domain.TenantChange, filter *ChangeFilter) bool {
	if filter == nil {
		return true
	}

	if len(filter.Sources) > 0 {
		sourceMatch := false
		for _, source := range filter.Sources {
			if change.Source == source {
				sourceMatch = true
				break
			}
		}
		if !sourceMatch {
			return false
		}
	}

	if filter.TenantID != "" && change.TenantID != filter.TenantID {
		return false
	}

	return true
}

// generateID generates a unique subscription ID
func (f *ChangeFeed) generateID() string {
	f.nextID++
	return fmt.Sprintf("subscription-%d", f.nextID)
}

// Stats returns change feed statistics
func (f *ChangeFeed) Stats() map[string]interface{} {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return map[string]interface{}{
		"active_subscriptions": len(f.subscriptions),
	}
}
