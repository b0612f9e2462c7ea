package application

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"storefront-insights/internal/domain"
	"storefront-insights/internal/ports"

	"github.com/rs/zerolog"
)

// EventRecorder appends webhook deliveries to the owning tenant's event log
type EventRecorder struct {
	store    ports.EntityStore
	log      ports.WebhookLog // optional
	notifier ports.ChangeNotifier
	metrics  ports.Metrics
	logger   zerolog.Logger
}

// NewEventRecorder creates a new event recorder. log, notifier and metrics may be nil.
func NewEventRecorder(
	store ports.EntityStore,
	log ports.WebhookLog,
	notifier ports.ChangeNotifier,
	metrics ports.Metrics,
	logger zerolog.Logger,
) *EventRecorder {
	return &EventRecorder{
		store:    store,
		log:      log,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Record stores a verified delivery as a custom event. A delivery for a shop
// with no tenant is dropped with OutcomeTenantNotFound and no error.
// Duplicate deliveries are stored as separate events.
func (r *EventRecorder) Record(ctx context.Context, delivery *domain.WebhookDelivery) (domain.RecordOutcome, error) {
	if delivery.ReceivedAt.IsZero() {
		delivery.ReceivedAt = time.Now().UTC()
	}

	if err := validateDelivery(delivery); err != nil {
		r.finish(ctx, delivery, domain.OutcomeRejected)
		return domain.OutcomeRejected, err
	}

	tenant, err := r.store.FindTenantByShop(ctx, delivery.Shop)
	if err != nil {
		r.finish(ctx, delivery, domain.OutcomeFailed)
		return domain.OutcomeFailed, err
	}
	if tenant == nil {
		r.logger.Info().
			Str("topic", delivery.Topic).
			Str("shop", delivery.Shop).
			Msg("Dropping webhook for unknown shop")
		r.finish(ctx, delivery, domain.OutcomeTenantNotFound)
		return domain.OutcomeTenantNotFound, nil
	}

	event, err := r.store.AppendEvent(ctx, tenant.ID, delivery.Topic, json.RawMessage(delivery.Payload))
	if err != nil {
		r.finish(ctx, delivery, domain.OutcomeFailed)
		return domain.OutcomeFailed, err
	}

	r.logger.Info().
		Str("topic", delivery.Topic).
		Str("shop", delivery.Shop).
		Str("eventId", event.ID).
		Msg("Webhook event recorded")

	r.finish(ctx, delivery, domain.OutcomeRecorded)

	if r.notifier != nil {
		r.notifier.Publish(ctx, domain.TenantChange{
			TenantID: tenant.ID,
			Source:   domain.ChangeSourceWebhook,
			Topic:    delivery.Topic,
			At:       event.CreatedAt,
		})
	}

	return domain.OutcomeRecorded, nil
}

// Reject audits a delivery that failed signature verification
func (r *EventRecorder) Reject(ctx context.Context, delivery *domain.WebhookDelivery) {
	if delivery.ReceivedAt.IsZero() {
		delivery.ReceivedAt = time.Now().UTC()
	}
	r.logger.Warn().
		Str("topic", delivery.Topic).
		Str("shop", delivery.Shop).
		Msg("Webhook signature verification failed")
	r.finish(ctx, delivery, domain.OutcomeRejected)
}

func validateDelivery(delivery *domain.WebhookDelivery) error {
	if strings.TrimSpace(delivery.Topic) == "" {
		return &domain.ValidationError{Field: "topic", Message: "X-Shopify-Topic header is required"}
	}
	if strings.TrimSpace(delivery.Shop) == "" {
		return &domain.ValidationError{Field: "shop", Message: "X-Shopify-Shop-Domain header is required"}
	}
	if !json.Valid(delivery.Payload) {
		return &domain.ValidationError{Field: "payload", Message: "body is not valid JSON"}
	}
	return nil
}

// Metric label values for rejected deliveries, whose topic header is
// caller controlled
const (
	topicLabelUnverified = "unverified"
	topicLabelInvalid    = "invalid"
)

func topicLabel(delivery *domain.WebhookDelivery, outcome domain.RecordOutcome) string {
	if outcome != domain.OutcomeRejected {
		return delivery.Topic
	}
	if !delivery.Verified {
		return topicLabelUnverified
	}
	return topicLabelInvalid
}

// finish writes the audit record and metrics; neither can fail the delivery
func (r *EventRecorder) finish(ctx context.Context, delivery *domain.WebhookDelivery, outcome domain.RecordOutcome) {
	delivery.Outcome = string(outcome)

	if r.metrics != nil {
		r.metrics.ObserveWebhook(topicLabel(delivery, outcome), outcome)
	}

	if r.log == nil {
		return
	}
	if err := r.log.LogWebhook(ctx, delivery); err != nil {
		r.logger.Error().
			Err(err).
			Str("topic", delivery.Topic).
			Str("shop", delivery.Shop).
			Msg("Failed to log webhook delivery")
	}
}
