package entity

import (
	"encoding/json"
	"time"

	"storefront-insights/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoWebhookDeliveryDoc represents a webhook delivery in MongoDB
type MongoWebhookDeliveryDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Topic      string             `bson:"topic"`
	Shop       string             `bson:"shop"`
	Payload    interface{}        `bson:"payload"` // Decoded JSON when valid, raw string otherwise
	Verified   bool               `bson:"verified"`
	Outcome    string             `bson:"outcome"`
	ReceivedAt time.Time          `bson:"receivedAt"`
}

// MongoWebhookDeliveryDocFromDomain converts a delivery to a MongoDB document
func MongoWebhookDeliveryDocFromDomain(delivery *domain.WebhookDelivery) *MongoWebhookDeliveryDoc {
	doc := &MongoWebhookDeliveryDoc{
		Topic:      delivery.Topic,
		Shop:       delivery.Shop,
		Verified:   delivery.Verified,
		Outcome:    delivery.Outcome,
		ReceivedAt: delivery.ReceivedAt,
	}

	var decoded interface{}
	if err := json.Unmarshal(delivery.Payload, &decoded); err == nil {
		doc.Payload = decoded
	} else {
		doc.Payload = string(delivery.Payload)
	}

	return doc
}
