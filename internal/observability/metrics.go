package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// DefaultNamespace prefixes every adapter metric.
const DefaultNamespace = "cogex"

// Metrics holds the adapter's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so components can be built without a registry.
type Metrics struct {
	reg       prometheus.Registerer
	namespace string

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	attempts        *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	probeLatency    *prometheus.HistogramVec
	healthStatus    *prometheus.GaugeVec
}

// NewRegistry returns a registry preloaded with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetrics creates and registers the adapter metrics on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		reg:       reg,
		namespace: namespace,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adapter",
			Name:      "requests_total",
			Help:      "Executed queries by origin and outcome",
		}, []string{"origin", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "adapter",
			Name:      "request_duration_seconds",
			Help:      "End-to-end Execute latency by origin",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"origin"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adapter",
			Name:      "backend_attempts_total",
			Help:      "Backend call attempts by backend and classified outcome",
		}, []string{"backend", "outcome"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "adapter",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per backend (0=closed, 1=open, 2=half-open)",
		}, []string{"backend"}),
		probeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "probe_latency_seconds",
			Help:      "Health probe latency per backend",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"backend"}),
		healthStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "status",
			Help:      "1 when the backend's last probe was healthy or degraded, 0 otherwise",
		}, []string{"backend"}),
	}

	for _, c := range []prometheus.Collector{
		m.requests, m.requestDuration, m.attempts, m.breakerState, m.probeLatency, m.healthStatus,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registerer returns the registerer the metrics were registered on, or nil.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return nil
	}
	return m.reg
}

// Namespace returns the metric namespace.
func (m *Metrics) Namespace() string {
	if m == nil {
		return DefaultNamespace
	}
	return m.namespace
}

// ObserveRequest records one Execute call.
func (m *Metrics) ObserveRequest(origin, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(origin, outcome).Inc()
	m.requestDuration.WithLabelValues(origin).Observe(elapsed.Seconds())
}

// ObserveAttempt records one backend attempt.
func (m *Metrics) ObserveAttempt(backend, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(backend, outcome).Inc()
}

// SetBreakerState publishes a breaker state.
func (m *Metrics) SetBreakerState(backend string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(backend).Set(float64(state))
}

// ObserveProbe records a health probe.
func (m *Metrics) ObserveProbe(backend string, latency time.Duration, usable bool) {
	if m == nil {
		return
	}
	m.probeLatency.WithLabelValues(backend).Observe(latency.Seconds())
	v := 0.0
	if usable {
		v = 1.0
	}
	m.healthStatus.WithLabelValues(backend).Set(v)
}

// RegisterGaugeFunc registers a gauge polled at scrape time.
func (m *Metrics) RegisterGaugeFunc(subsystem, name, help string, fn func() float64) error {
	if m == nil {
		return nil
	}
	return m.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}
