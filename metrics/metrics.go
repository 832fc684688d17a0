// Package metrics exports engine write outcomes to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tradebook/order-ledger/ledger"
)

// LedgerMetrics implements ledger.Observer. A nil *LedgerMetrics is a no-op.
type LedgerMetrics struct {
	writes   *prometheus.CounterVec
	failures *prometheus.CounterVec
	postings *prometheus.HistogramVec
	duration *prometheus.HistogramVec
}

var _ ledger.Observer = (*LedgerMetrics)(nil)

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderledger",
		Name:      "writes_total",
		Help:      "Committed ledger writes by operation.",
	}, []string{"op"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderledger",
		Name:      "write_failures_total",
		Help:      "Rolled back ledger writes by operation and reason.",
	}, []string{"op", "reason"})
	postings := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderledger",
		Name:      "postings_per_write",
		Help:      "Postings written (or removed, for deletes) per operation.",
		Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
	}, []string{"op"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderledger",
		Name:      "write_duration_seconds",
		Help:      "Duration of ledger writes in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	reg.MustRegister(writes, failures, postings, duration)
	return &LedgerMetrics{
		writes:   writes,
		failures: failures,
		postings: postings,
		duration: duration,
	}
}

func (m *LedgerMetrics) WriteSucceeded(op string, postings int, elapsed time.Duration) {
	if m == nil || m.writes == nil {
		return
	}
	op = normalizeLabel(op)
	m.writes.WithLabelValues(op).Inc()
	m.postings.WithLabelValues(op).Observe(float64(postings))
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *LedgerMetrics) WriteFailed(op string, err error) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(op), reason(err)).Inc()
}

// reason keeps label cardinality bounded.
func reason(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, ledger.ErrInvalidOrder), errors.Is(err, ledger.ErrInvalidEntry):
		return "invalid"
	case ledger.IsClientError(err):
		return "party"
	case ledger.IsNotFound(err):
		return "not_found"
	case ledger.IsConflict(err):
		return "conflict"
	default:
		return "store"
	}
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
