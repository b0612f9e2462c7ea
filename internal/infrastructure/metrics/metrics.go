package metrics

import (
	"time"

	"storefront-insights/internal/domain"
	"storefront-insights/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics holds the Prometheus collectors for sync passes and webhooks
type Metrics struct {
	syncRuns       *prometheus.CounterVec
	syncDuration   prometheus.Histogram
	syncedEntities *prometheus.CounterVec
	skippedOrders  prometheus.Counter
	webhookEvents  *prometheus.CounterVec
}

var _ ports.Metrics = (*Metrics)(nil)

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync passes by outcome.",
		}, []string{"outcome"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync passes.",
			Buckets:   prometheus.DefBuckets,
		}),
		syncedEntities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synced_entities_total",
			Help:      "Entities upserted by sync passes.",
		}, []string{"entity"}),
		skippedOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_orders_total",
			Help:      "Orders skipped because their customer could not be resolved.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by topic and outcome.",
		}, []string{"topic", "outcome"}),
	}

	reg.MustRegister(m.syncRuns, m.syncDuration, m.syncedEntities, m.skippedOrders, m.webhookEvents)
	return m
}

// ObserveSync records one sync pass
func (m *Metrics) ObserveSync(outcome string, duration time.Duration, result domain.ReconcileResult) {
	m.syncRuns.WithLabelValues(outcome).Inc()
	m.syncDuration.Observe(duration.Seconds())
	m.syncedEntities.WithLabelValues("customer").Add(float64(result.Customers))
	m.syncedEntities.WithLabelValues("product").Add(float64(result.Products))
	m.syncedEntities.WithLabelValues("order").Add(float64(result.Orders))
	m.skippedOrders.Add(float64(result.SkippedOrders))
}

// ObserveWebhook records one webhook delivery
func (m *Metrics) ObserveWebhook(topic string, outcome domain.RecordOutcome) {
	m.webhookEvents.WithLabelValues(topic, string(outcome)).Inc()
}
