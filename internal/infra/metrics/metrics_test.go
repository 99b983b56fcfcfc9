package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePricing("ok", 20*time.Millisecond)
	m.ObservePricing("ok", 5*time.Millisecond)
	m.ObservePricing("unpricable_material", time.Millisecond)
	m.ObserveFreeze("set", "batch_set_partial_failure")
	m.ObserveConflict("batch")
	m.ObserveConflict("batch")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pricingRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.freezes.WithLabelValues("set", "batch_set_partial_failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.conflicts.WithLabelValues("batch")))

	n, err := testutil.GatherAndCount(reg, "pricing_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegisterTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
