// Package metrics provides Prometheus metrics for airdrop runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used during a run.
// A nil *Manager is valid and records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         *prometheus.Registry

	// Run progress
	holdersTotal     prometheus.Gauge
	holdersProcessed prometheus.Counter
	holdersSkipped   prometheus.Counter
	holdersEligible  prometheus.Counter

	// Ledger
	fetchFailures *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	eventsFetched *prometheus.CounterVec
	eventsDropped prometheus.Counter

	// Checkpoint
	commitLatency prometheus.Histogram
	commitErrors  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager registered on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "holdsnap",
		subsystem:        "airdrop",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      make(map[string]string),
		registry:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.holdersTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "holders_total",
		Help:        "Number of holders in the current run",
		ConstLabels: m.constLabels,
	})

	m.holdersProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "holders_processed_total",
		Help:        "Holders whose checkpoint commit completed",
		ConstLabels: m.constLabels,
	})

	m.holdersSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "holders_skipped_total",
		Help:        "Holders restored from a previous checkpoint instead of re-queried",
		ConstLabels: m.constLabels,
	})

	m.holdersEligible = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "holders_eligible_total",
		Help:        "Holders with a positive minimum balance",
		ConstLabels: m.constLabels,
	})

	m.fetchFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "fetch_failures_total",
			Help:        "Ledger queries that failed and were degraded to an empty event set",
			ConstLabels: m.constLabels,
		},
		[]string{"direction"},
	)

	m.fetchLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "fetch_latency_milliseconds",
			Help:        "Ledger event query latency in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"direction"},
	)

	m.eventsFetched = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "events_fetched_total",
			Help:        "Transfer events returned by the ledger",
			ConstLabels: m.constLabels,
		},
		[]string{"direction"},
	)

	m.eventsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_overwritten_total",
		Help:        "Events lost to a same-block collision during timeline merge",
		ConstLabels: m.constLabels,
	})

	m.commitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "checkpoint_commit_milliseconds",
		Help:        "Time to rewrite all checkpoint artifacts",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.commitErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "checkpoint_errors_total",
		Help:        "Checkpoint commits that failed",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// SetHoldersTotal sets the size of the holder list.
func (m *Manager) SetHoldersTotal(n int) {
	if m == nil {
		return
	}
	m.holdersTotal.Set(float64(n))
}

// RecordHolderProcessed increments the processed holders counter.
func (m *Manager) RecordHolderProcessed(eligible bool) {
	if m == nil {
		return
	}
	m.holdersProcessed.Inc()
	if eligible {
		m.holdersEligible.Inc()
	}
}

// RecordHolderSkipped increments the resumed holders counter.
func (m *Manager) RecordHolderSkipped() {
	if m == nil {
		return
	}
	m.holdersSkipped.Inc()
}

// RecordFetch records one ledger query.
func (m *Manager) RecordFetch(direction string, events int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.eventsFetched.WithLabelValues(direction).Add(float64(events))
	m.fetchLatency.WithLabelValues(direction).Observe(float64(elapsed.Milliseconds()))
}

// RecordFetchFailure increments the failed queries counter for direction.
func (m *Manager) RecordFetchFailure(direction string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(direction).Inc()
}

// RecordEventsOverwritten counts events discarded by a same-block collision.
func (m *Manager) RecordEventsOverwritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsDropped.Add(float64(n))
}

// RecordCommit records one checkpoint commit.
func (m *Manager) RecordCommit(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.commitLatency.Observe(float64(elapsed.Milliseconds()))
	if err != nil {
		m.commitErrors.Inc()
	}
}

// RecordHTTPRequest records an HTTP request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Registry returns the Prometheus registry holding this manager's collectors.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}
