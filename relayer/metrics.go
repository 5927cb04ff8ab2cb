package relayer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of the relayer.
type Metrics struct {
	// ingestion
	Events     *prometheus.CounterVec
	Malformed  *prometheus.CounterVec
	Duplicates prometheus.Counter
	Shed       prometheus.Counter
	QueueDepth prometheus.Gauge

	// processing
	Outcomes *prometheus.CounterVec
	Attempts prometheus.Histogram
	Lookups  *prometheus.HistogramVec
	Writes   *prometheus.CounterVec
	Drained  prometheus.Counter
}

// NewMetrics creates and registers the metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "relayer_events_total",
			Help: "Contract events received, by event name.",
		}, []string{"event"}),
		Malformed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "relayer_events_malformed_total",
			Help: "Contract events dropped because their payload could not be decoded, by event name.",
		}, []string{"event"}),
		Duplicates: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relayer_events_duplicate_total",
			Help: "Logs delivered more than once or removed by a reorg.",
		}),
		Shed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relayer_items_shed_total",
			Help: "Requests dropped because the queue was full.",
		}),
		QueueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "relayer_queue_depth",
			Help: "Requests waiting in the queue.",
		}),
		Outcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "relayer_items_processed_total",
			Help: "Requests processed, by outcome.",
		}, []string{"status"}),
		Attempts: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "relayer_item_attempts",
			Help:    "Attempts used per processed request.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		Lookups: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relayer_lookup_duration_seconds",
			Help:    "Duration of the balance service requests, by result.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		Writes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "relayer_writes_total",
			Help: "setUserBalance transactions sent, by result.",
		}, []string{"result"}),
		Drained: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "relayer_drain_ticks_total",
			Help: "Drain ticks executed.",
		}),
	}
}
