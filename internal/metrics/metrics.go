// Package metrics exposes the shortener's Prometheus instrumentation.
//
// All methods are safe to call on a nil *Metrics so components can be built
// without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shortener"

// Resolution outcomes
const (
	OutcomeResolved    = "resolved"
	OutcomeNotFound    = "not_found"
	OutcomeExpired     = "expired"
	OutcomePrivate     = "private"
	OutcomeUnavailable = "unavailable"
	OutcomeTimeout     = "timeout"
)

// Creation outcomes
const (
	OutcomeCreated   = "created"
	OutcomeTaken     = "taken"
	OutcomeExhausted = "exhausted"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Metrics holds the registered collectors
type Metrics struct {
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	resolveLatency  prometheus.Histogram
	clicksEnqueued  prometheus.Counter
	clicksDropped   prometheus.Counter
	clicksIngested  prometheus.Counter
	clicksFailed    prometheus.Counter
	clicksPruned    prometheus.Counter
	queueDepth      prometheus.Gauge
	creations       *prometheus.CounterVec
	collisions      prometheus.Counter
	namespacePurged prometheus.Counter
}

// New registers the shortener collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Hot cache hits.",
		}, []string{"backend"}),
		cacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Hot cache misses.",
		}, []string{"backend"}),
		cacheEvictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries evicted from the hot cache by capacity or deadline.",
		}, []string{"backend"}),
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Shortcode resolutions by outcome.",
		}, []string{"outcome"}),
		resolveLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Latency of shortcode resolution.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		clicksEnqueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_enqueued_total",
			Help:      "Click events accepted by the ingestion queue.",
		}),
		clicksDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_dropped_total",
			Help:      "Click events dropped because the ingestion queue was full or closed.",
		}),
		clicksIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_ingested_total",
			Help:      "Click events written to the store.",
		}),
		clicksFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_failed_total",
			Help:      "Click events that could not be written to the store.",
		}),
		clicksPruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_pruned_total",
			Help:      "Raw click events removed after the retention window.",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "click_queue_depth",
			Help:      "Click events waiting in the ingestion queue.",
		}),
		creations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "creations_total",
			Help:      "Short URL creations by outcome.",
		}, []string{"outcome"}),
		collisions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_collisions_total",
			Help:      "Generated shortcodes that collided with an existing record.",
		}),
		namespacePurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "namespace_records_purged_total",
			Help:      "Records removed by the deleted-namespace sweep.",
		}),
	}
}

func (m *Metrics) CacheHit(backend string) {
	if m != nil {
		m.cacheHits.WithLabelValues(backend).Inc()
	}
}

func (m *Metrics) CacheMiss(backend string) {
	if m != nil {
		m.cacheMisses.WithLabelValues(backend).Inc()
	}
}

func (m *Metrics) CacheEviction(backend string) {
	if m != nil {
		m.cacheEvictions.WithLabelValues(backend).Inc()
	}
}

// Resolution records the outcome and latency of one resolve call
func (m *Metrics) Resolution(outcome string, took time.Duration) {
	if m != nil {
		m.resolutions.WithLabelValues(outcome).Inc()
		m.resolveLatency.Observe(took.Seconds())
	}
}

func (m *Metrics) ClickEnqueued() {
	if m != nil {
		m.clicksEnqueued.Inc()
	}
}

func (m *Metrics) ClickDropped() {
	if m != nil {
		m.clicksDropped.Inc()
	}
}

func (m *Metrics) ClickIngested() {
	if m != nil {
		m.clicksIngested.Inc()
	}
}

func (m *Metrics) ClickFailed() {
	if m != nil {
		m.clicksFailed.Inc()
	}
}

func (m *Metrics) ClicksPruned(n int64) {
	if m != nil && n > 0 {
		m.clicksPruned.Add(float64(n))
	}
}

// QueueDepth sets the current ingestion queue length
func (m *Metrics) QueueDepth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}

func (m *Metrics) Creation(outcome string) {
	if m != nil {
		m.creations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) GeneratorCollision() {
	if m != nil {
		m.collisions.Inc()
	}
}

func (m *Metrics) NamespaceRecordsPurged(n int) {
	if m != nil && n > 0 {
		m.namespacePurged.Add(float64(n))
	}
}
