package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"storefront-insights/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutDelivery(shop string) *domain.WebhookDelivery {
	return &domain.WebhookDelivery{
		Topic:    domain.TopicCheckoutsCreate,
		Shop:     shop,
		Payload:  []byte(`{"id":981,"token":"abc","total_price":"42.00"}`),
		Verified: true,
	}
}

func TestRecord_StoresEventForKnownShop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	tenant := newTestTenant(t, store, "demo.myshopify.com")
	notifier := &recordingNotifier{}
	metrics := newRecordingMetrics()
	log := &recordingWebhookLog{}
	recorder := NewEventRecorder(store, log, notifier, metrics, zerolog.Nop())

	outcome, err := recorder.Record(ctx, checkoutDelivery("demo.myshopify.com"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRecorded, outcome)

	count, err := store.CountEvents(ctx, tenant.ID, domain.TopicCheckoutsCreate)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.Len(t, notifier.changes, 1)
	assert.Equal(t, tenant.ID, notifier.changes[0].TenantID)
	assert.Equal(t, domain.ChangeSourceWebhook, notifier.changes[0].Source)
	assert.Equal(t, domain.TopicCheckoutsCreate, notifier.changes[0].Topic)

	require.Len(t, log.deliveries, 1)
	assert.Equal(t, string(domain.OutcomeRecorded), log.deliveries[0].Outcome)
	assert.False(t, log.deliveries[0].ReceivedAt.IsZero())
	assert.Equal(t, 1, metrics.webhooks["checkouts/create|recorded"])
}

func TestRecord_DuplicateDeliveriesAreKept(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	tenant := newTestTenant(t, store, "demo.myshopify.com")
	recorder := NewEventRecorder(store, nil, nil, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := recorder.Record(ctx, checkoutDelivery("demo.myshopify.com"))
		require.NoError(t, err)
	}

	count, err := store.CountEvents(ctx, tenant.ID, domain.TopicCheckoutsCreate)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestRecord_UnknownShopIsDropped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	other := newTestTenant(t, store, "other.myshopify.com")
	notifier := &recordingNotifier{}
	log := &recordingWebhookLog{}
	recorder := NewEventRecorder(store, log, notifier, nil, zerolog.Nop())

	outcome, err := recorder.Record(ctx, checkoutDelivery("unknown.myshopify.com"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTenantNotFound, outcome)
	assert.Empty(t, notifier.changes)

	count, err := store.CountEvents(ctx, other.ID, domain.TopicCheckoutsCreate)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.Len(t, log.deliveries, 1)
	assert.Equal(t, string(domain.OutcomeTenantNotFound), log.deliveries[0].Outcome)
}

func TestRecord_InvalidDelivery(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(d *domain.WebhookDelivery)
		wantField string
	}{
		{"missing topic", func(d *domain.WebhookDelivery) { d.Topic = "" }, "topic"},
		{"missing shop", func(d *domain.WebhookDelivery) { d.Shop = " " }, "shop"},
		{"malformed json", func(d *domain.WebhookDelivery) { d.Payload = []byte(`{"id":`) }, "payload"},
		{"empty body", func(d *domain.WebhookDelivery) { d.Payload = nil }, "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			newTestTenant(t, store, "demo.myshopify.com")
			metrics := newRecordingMetrics()
			recorder := NewEventRecorder(store, nil, nil, metrics, zerolog.Nop())

			delivery := checkoutDelivery("demo.myshopify.com")
			tt.mutate(delivery)

			outcome, err := recorder.Record(context.Background(), delivery)
			assert.Equal(t, domain.OutcomeRejected, outcome)
			var validation *domain.ValidationError
			require.True(t, errors.As(err, &validation), "got %v", err)
			assert.Equal(t, tt.wantField, validation.Field)
			assert.Equal(t, map[string]int{"invalid|rejected": 1}, metrics.webhooks)
		})
	}
}

func TestRecord_AuditLogFailureDoesNotFailDelivery(t *testing.T) {
	store := newTestStore(t)
	newTestTenant(t, store, "demo.myshopify.com")
	log := &recordingWebhookLog{err: errors.New("mongo unavailable")}
	recorder := NewEventRecorder(store, log, nil, nil, zerolog.Nop())

	outcome, err := recorder.Record(context.Background(), checkoutDelivery("demo.myshopify.com"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRecorded, outcome)
}

func TestReject_AuditsDelivery(t *testing.T) {
	log := &recordingWebhookLog{}
	metrics := newRecordingMetrics()
	recorder := NewEventRecorder(newTestStore(t), log, nil, metrics, zerolog.Nop())

	delivery := checkoutDelivery("demo.myshopify.com")
	delivery.Verified = false
	recorder.Reject(context.Background(), delivery)

	require.Len(t, log.deliveries, 1)
	assert.Equal(t, string(domain.OutcomeRejected), log.deliveries[0].Outcome)
	assert.False(t, log.deliveries[0].Verified)
	assert.Equal(t, 1, metrics.webhooks["unverified|rejected"])
}

func TestReject_DoesNotLabelMetricsWithCallerTopic(t *testing.T) {
	metrics := newRecordingMetrics()
	recorder := NewEventRecorder(newTestStore(t), nil, nil, metrics, zerolog.Nop())

	for i := 0; i < 3; i++ {
		delivery := checkoutDelivery("demo.myshopify.com")
		delivery.Topic = fmt.Sprintf("made-up/topic-%d", i)
		delivery.Verified = false
		recorder.Reject(context.Background(), delivery)
	}

	assert.Equal(t, map[string]int{"unverified|rejected": 3}, metrics.webhooks)
}
