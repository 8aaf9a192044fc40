package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// StoreOperationLatency records document store latency by backend, operation and collection.
	StoreOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_store_operation_latency_seconds",
		Help:    "Document store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "operation", "collection"})

	// StoreErrors counts failed document store calls. Not-found and version conflicts are
	// expected outcomes and are not counted.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_store_errors_total",
		Help: "Total number of failed document store operations",
	}, []string{"backend", "operation"})

	// VotesTotal counts vote ledger calls.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_votes_total",
		Help: "Total number of vote operations by item kind, direction, action and outcome",
	}, []string{"kind", "direction", "action", "outcome"})

	// VoteRetries counts optimistic vote attempts that lost a race and were retried.
	VoteRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_vote_retries_total",
		Help: "Total number of vote attempts retried after a version conflict",
	}, []string{"kind"})

	// FanoutBatchSize records how many comment ids each fan-out read resolves.
	FanoutBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agora_fanout_batch_size",
		Help:    "Number of comment ids requested per fan-out read",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})

	// CompensationsTotal counts best-effort cleanup writes by kind and outcome.
	CompensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_compensations_total",
		Help: "Total number of compensating writes after partial failures",
	}, []string{"kind", "outcome"})
)

// StoreMetrics records latency for one document store backend.
type StoreMetrics struct {
	backend string
}

// NewStoreMetrics returns a new StoreMetrics instance.
func NewStoreMetrics(backend string) *StoreMetrics {
	return &StoreMetrics{backend: backend}
}

// ObserveOperation records the latency of a store operation.
func (m *StoreMetrics) ObserveOperation(operation, collection string, start time.Time) {
	StoreOperationLatency.WithLabelValues(m.backend, operation, collection).Observe(time.Since(start).Seconds())
}

// TrackOperation returns a function that records operation latency when called (e.g. defer).
func (m *StoreMetrics) TrackOperation(operation, collection string) func() {
	start := time.Now()
	return func() {
		m.ObserveOperation(operation, collection, start)
	}
}

// RecordError increments the error counter for the operation.
func (m *StoreMetrics) RecordError(operation string) {
	StoreErrors.WithLabelValues(m.backend, operation).Inc()
}
