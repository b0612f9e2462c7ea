//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"storefront-insights/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoWebhookLog_LogWebhook(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(context.Background()) })

	db := client.Database("storefront_insights_test_" + uuid.NewString()[:8])
	t.Cleanup(func() { db.Drop(context.Background()) })

	log := NewMongoWebhookLog(db)
	require.NoError(t, log.EnsureIndexes(ctx))

	err = log.LogWebhook(ctx, &domain.WebhookDelivery{
		Topic:    domain.TopicCheckoutsCreate,
		Shop:     "demo.myshopify.com",
		Payload:  []byte(`{"token":"abc"}`),
		Verified: true,
		Outcome:  string(domain.OutcomeRecorded),
	})
	require.NoError(t, err)

	var doc bson.M
	err = db.Collection("webhook_deliveries").FindOne(ctx, bson.M{"shop": "demo.myshopify.com"}).Decode(&doc)
	require.NoError(t, err)
	assert.Equal(t, "checkouts/create", doc["topic"])
	assert.Equal(t, "recorded", doc["outcome"])
	assert.Equal(t, "abc", doc["payload"].(bson.M)["token"])
}
