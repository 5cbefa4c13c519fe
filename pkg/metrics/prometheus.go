package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "thumb"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Write path
	Requests *prometheus.CounterVec

	// Tiered cache
	CacheLookups    *prometheus.CounterVec
	CachePromotions prometheus.Counter
	HotKeysExpelled prometheus.Counter

	// Durability
	SyncedRows         *prometheus.CounterVec
	SyncedSlices       *prometheus.CounterVec
	ConsumerBatches    *prometheus.CounterVec
	DeadLetters        prometheus.Counter
	PublishErrors      prometheus.Counter
	BatchApplyDuration *prometheus.HistogramVec

	// Reconciliation
	ReconcileDrift    prometheus.Counter
	ReconcileFailures prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Like and unlike requests by outcome",
			},
			[]string{"operation", "outcome"},
		),

		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Tiered cache lookups by the tier that answered",
			},
			[]string{"tier"},
		),

		CachePromotions: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_promotions_total",
				Help:      "Entries copied into the local tier because their key is hot",
			},
		),

		HotKeysExpelled: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hotkeys_expelled_total",
				Help:      "Keys evicted from the hot-key top-K",
			},
		),

		SyncedRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synced_rows_total",
				Help:      "Like rows applied to the durable store",
			},
			[]string{"operation"},
		),

		SyncedSlices: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synced_slices_total",
				Help:      "Time slices processed by the batch sync job",
			},
			[]string{"status"},
		),

		ConsumerBatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consumer_batches_total",
				Help:      "Event batches handled by the consumer",
			},
			[]string{"status"},
		),

		DeadLetters: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dead_letters_total",
				Help:      "Messages routed to the dead-letter topic",
			},
		),

		PublishErrors: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_errors_total",
				Help:      "Asynchronous producer errors",
			},
		),

		BatchApplyDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_apply_duration_seconds",
				Help:      "Duration of durable batch transactions",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path"},
		),

		ReconcileDrift: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_drift_total",
				Help:      "Likes present in Redis but missing from the durable store",
			},
		),

		ReconcileFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_failures_total",
				Help:      "Compensating events that could not be emitted",
			},
		),
	}
}

// Discard returns metrics bound to a private registry that nothing scrapes.
func Discard() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// OrDiscard returns m, or Discard() when m is nil.
func OrDiscard(m *Metrics) *Metrics {
	if m == nil {
		return Discard()
	}
	return m
}
