package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds Prometheus metrics for cache operations. A nil *metrics is
// valid and records nothing.
type metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions *prometheus.CounterVec
}

// newMetrics creates and registers cache metrics. size is polled at scrape time.
func newMetrics(reg prometheus.Registerer, namespace string, size func() int) (*metrics, error) {
	m := &metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of cache evictions by reason (capacity, expired)",
		}, []string{"reason"}),
	}
	entries := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Current number of entries in cache",
	}, func() float64 { return float64(size()) })

	for _, c := range []prometheus.Collector{m.hits, m.misses, m.evictions, entries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *metrics) evict(reason string) {
	if m != nil {
		m.evictions.WithLabelValues(reason).Inc()
	}
}
