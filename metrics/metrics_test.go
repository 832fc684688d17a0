package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradebook/order-ledger/ledger"
	"github.com/tradebook/order-ledger/ledger/store"
)

func TestLedgerMetricsExportsCountersAndHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.WriteSucceeded(ledger.OpCreate, 5, 20*time.Millisecond)
	m.WriteSucceeded(ledger.OpCreate, 3, 10*time.Millisecond)
	m.WriteSucceeded(ledger.OpDelete, 3, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.writes.WithLabelValues(ledger.OpCreate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.writes.WithLabelValues(ledger.OpDelete)))

	n, err := testutil.GatherAndCount(reg, "orderledger_postings_per_write", "orderledger_write_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, n, "one series per op for each histogram")
}

func TestLedgerMetricsFailureReasons(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.WriteFailed(ledger.OpUpdate, ledger.ErrOrderNotFound)
	m.WriteFailed(ledger.OpCreate, &ledger.ValidationError{Kind: ledger.ErrInvalidOrder})
	m.WriteFailed(ledger.OpCreate, &ledger.PartyError{Role: "vendor", PartyID: "p", Err: ledger.ErrProductPosting})
	m.WriteFailed(ledger.OpCreate, errors.New("disk full"))
	m.WriteFailed("", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(ledger.OpUpdate, "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(ledger.OpCreate, "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(ledger.OpCreate, "party")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(ledger.OpCreate, "store")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("unknown", "unknown")))
}

func TestLedgerMetricsCountsRejectedOrders(t *testing.T) {
	// GIVEN: An engine reporting to the metrics
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)
	engine := ledger.NewEngine(store.NewTxMemory(), ledger.WithObserver(m))

	// WHEN: An order without parties is saved
	_, err := engine.SaveOrder(context.Background(), "user-1", ledger.Order{})

	// THEN: The rejection is counted as invalid
	require.ErrorIs(t, err, ledger.ErrInvalidOrder)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(ledger.OpCreate, "invalid")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *LedgerMetrics
	assert.NotPanics(t, func() {
		m.WriteSucceeded(ledger.OpCreate, 1, time.Second)
		m.WriteFailed(ledger.OpCreate, errors.New("x"))
	})

	unregistered := NewLedgerMetrics(nil)
	assert.NotPanics(t, func() {
		unregistered.WriteSucceeded(ledger.OpCreate, 1, time.Second)
	})
}
