package adapter

import (
	"github.com/ejmockler/indra-cogex-mcp/internal/breaker"
	"github.com/ejmockler/indra-cogex-mcp/internal/cache"
	"github.com/ejmockler/indra-cogex-mcp/internal/health"
	"github.com/ejmockler/indra-cogex-mcp/internal/pool"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// Status is a read-only diagnostic view of the adapter.
type Status struct {
	Backends []BackendStatus `json:"backends"`
	Cache    cache.Stats     `json:"cache"`
	Closed   bool            `json:"closed"`
}

// BackendStatus describes one backend.
type BackendStatus struct {
	Backend types.Backend    `json:"backend"`
	Breaker breaker.Snapshot `json:"breaker"`
	Health  health.Snapshot  `json:"health"`
	// Pool is set for backends that hold a session pool.
	Pool *pool.Stats `json:"pool,omitempty"`
}

// Status reports breaker, health and pool state per backend plus cache
// statistics. It has no side effects.
func (a *Adapter) Status() Status {
	st := Status{
		Backends: make([]BackendStatus, 0, len(a.lanes)),
		Cache:    a.cache.Stats(),
		Closed:   a.closed.Load(),
	}
	for _, l := range a.lanes {
		id := l.client.Identity()
		bs := BackendStatus{
			Backend: id,
			Breaker: l.breaker.Snapshot(),
			Health:  a.monitor.Snapshot(id),
		}
		if pr, ok := l.client.(poolReporter); ok {
			stats := pr.PoolStats()
			bs.Pool = &stats
		}
		st.Backends = append(st.Backends, bs)
	}
	return st
}

// Backend returns the status of one backend, or false when it is not configured.
func (s Status) Backend(b types.Backend) (BackendStatus, bool) {
	for _, bs := range s.Backends {
		if bs.Backend == b {
			return bs, true
		}
	}
	return BackendStatus{}, false
}
