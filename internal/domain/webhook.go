package domain

import "time"

// Webhook topics the insights depend on
const (
	TopicCheckoutsCreate = "checkouts/create"
	TopicOrdersCreate    = "orders/create"
)

// WebhookDelivery represents one inbound webhook request
type WebhookDelivery struct {
	Topic      string    `json:"topic" bson:"topic"`
	Shop       string    `json:"shop" bson:"shop"`
	Payload    []byte    `json:"payload" bson:"payload"`
	Verified   bool      `json:"verified" bson:"verified"`
	Outcome    string    `json:"outcome" bson:"outcome"`
	ReceivedAt time.Time `json:"receivedAt" bson:"receivedAt"`
}

// RecordOutcome describes what happened to a webhook delivery
type RecordOutcome string

const (
	OutcomeRecorded       RecordOutcome = "recorded"
	OutcomeTenantNotFound RecordOutcome = "tenant_not_found"
	OutcomeRejected       RecordOutcome = "rejected"
	OutcomeFailed         RecordOutcome = "failed"
)

// ChangeSource identifies which write path touched a tenant's data
type ChangeSource string

const (
	ChangeSourceSync    ChangeSource = "sync"
	ChangeSourceWebhook ChangeSource = "webhook"
)

// TenantChange is published whenever a tenant's stored data changes
type TenantChange struct {
	TenantID string
	Source   ChangeSource
	Topic    string // Webhook topic, empty for sync passes
	At       time.Time
}
