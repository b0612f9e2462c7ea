package repository

import (
	"context"
	"fmt"
	"time"

	"storefront-insights/internal/domain"
	"storefront-insights/internal/infrastructure/repository/entity"
	"storefront-insights/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoWebhookLog implements WebhookLog using MongoDB
type MongoWebhookLog struct {
	deliveriesCollection *mongo.Collection
}

// NewMongoWebhookLog creates a new MongoDB webhook delivery log
func NewMongoWebhookLog(db *mongo.Database) *MongoWebhookLog {
	return &MongoWebhookLog{
		deliveriesCollection: db.Collection("webhook_deliveries"),
	}
}

var _ ports.WebhookLog = (*MongoWebhookLog)(nil)

// EnsureIndexes creates the per-shop lookup index
func (r *MongoWebhookLog) EnsureIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "shop", Value: 1}, {Key: "receivedAt", Value: -1}},
	}
	if _, err := r.deliveriesCollection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create webhook delivery index: %w", err)
	}
	return nil
}

// LogWebhook appends a webhook delivery
func (r *MongoWebhookLog) LogWebhook(ctx context.Context, delivery *domain.WebhookDelivery) error {
	doc := entity.MongoWebhookDeliveryDocFromDomain(delivery)
	doc.ID = primitive.NewObjectID()
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = time.Now().UTC()
	}

	_, err := r.deliveriesCollection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}

	return nil
}
