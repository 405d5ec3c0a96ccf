package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultNamespace, m.Namespace())

	m.ObserveRequest("primary", "success", 20*time.Millisecond)
	m.ObserveRequest("fallback", "success", 40*time.Millisecond)
	m.ObserveRequest("primary", "success", 10*time.Millisecond)
	m.ObserveAttempt("primary", "timeout")
	m.SetBreakerState("primary", 1)
	m.ObserveProbe("fallback", 5*time.Millisecond, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("primary", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("primary", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("primary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.healthStatus.WithLabelValues("fallback")))

	expected := `
# HELP cogex_adapter_breaker_state Circuit breaker state per backend (0=closed, 1=open, 2=half-open)
# TYPE cogex_adapter_breaker_state gauge
cogex_adapter_breaker_state{backend="primary"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cogex_adapter_breaker_state"))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg, "cogex")
	require.NoError(t, err)

	_, err = NewMetrics(reg, "cogex")
	assert.Error(t, err)
}

func TestMetrics_GaugeFunc(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, "cogex")
	require.NoError(t, err)

	require.NoError(t, m.RegisterGaugeFunc("pool", "in_use", "Sessions in use", func() float64 { return 3 }))

	count, err := testutil.GatherAndCount(reg, "cogex_pool_in_use")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("primary", "success", time.Millisecond)
		m.ObserveAttempt("primary", "success")
		m.SetBreakerState("primary", 0)
		m.ObserveProbe("primary", time.Millisecond, false)
		assert.NoError(t, m.RegisterGaugeFunc("pool", "in_use", "x", func() float64 { return 0 }))
	})
	assert.Nil(t, m.Registerer())
	assert.Equal(t, DefaultNamespace, m.Namespace())
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
