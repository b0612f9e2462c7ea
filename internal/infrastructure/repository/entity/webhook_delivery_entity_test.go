package entity

import (
	"testing"
	"time"

	"storefront-insights/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestMongoWebhookDeliveryDocFromDomain(t *testing.T) {
	received := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	doc := MongoWebhookDeliveryDocFromDomain(&domain.WebhookDelivery{
		Topic:      domain.TopicCheckoutsCreate,
		Shop:       "demo.myshopify.com",
		Payload:    []byte(`{"token":"abc","line_items":[1,2]}`),
		Verified:   true,
		Outcome:    string(domain.OutcomeRecorded),
		ReceivedAt: received,
	})

	assert.True(t, doc.ID.IsZero())
	assert.Equal(t, "checkouts/create", doc.Topic)
	assert.Equal(t, "recorded", doc.Outcome)
	assert.True(t, doc.Verified)
	assert.Equal(t, received, doc.ReceivedAt)
	assert.Equal(t, map[string]interface{}{
		"token":      "abc",
		"line_items": []interface{}{1.0, 2.0},
	}, doc.Payload)
}

func TestMongoWebhookDeliveryDocFromDomain_KeepsMalformedPayloadAsText(t *testing.T) {
	doc := MongoWebhookDeliveryDocFromDomain(&domain.WebhookDelivery{
		Topic:   domain.TopicOrdersCreate,
		Payload: []byte(`{"id":`),
		Outcome: string(domain.OutcomeRejected),
	})

	assert.Equal(t, `{"id":`, doc.Payload)
}
