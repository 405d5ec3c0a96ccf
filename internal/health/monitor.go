// Package health probes each backend on a fixed interval, independently of
// query traffic, and keeps the latest result per backend in a snapshot table.
//
// The monitor never raises probe failures to callers and never touches a
// circuit breaker. Its snapshots feed the adapter status surface and, when
// enabled, the breaker's health-gated recovery hint.
package health

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ejmockler/indra-cogex-mcp/internal/observability"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// Prober is a backend that supports a cheap, side-effect-free liveness check.
// backend.Client satisfies it.
type Prober interface {
	Identity() types.Backend
	Probe(ctx context.Context) error
}

// Config controls probe cadence and classification.
type Config struct {
	// Interval between probe rounds.
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"min=1ms"`

	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout" validate:"min=1ms"`

	// DegradedLatency is the latency above which a successful probe reports DEGRADED.
	DegradedLatency time.Duration `mapstructure:"degraded_latency" yaml:"degraded_latency" validate:"min=0"`
}

// DefaultConfig returns the default probe settings.
func DefaultConfig() Config {
	return Config{
		Interval:        30 * time.Second,
		ProbeTimeout:    5 * time.Second,
		DegradedLatency: time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.DegradedLatency <= 0 {
		c.DegradedLatency = d.DegradedLatency
	}
	return c
}

// Snapshot is the result of the most recent probe of one backend.
type Snapshot struct {
	Backend             types.Backend     `json:"backend"`
	Status              types.HealthState `json:"status"`
	LastCheckedAt       time.Time         `json:"last_checked_at,omitempty"`
	Latency             time.Duration     `json:"latency"`
	Message             string            `json:"message,omitempty"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
}

// ErrAlreadyStarted is returned by Start on a running monitor.
var ErrAlreadyStarted = errors.New("health monitor already started")

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithLogger sets the logger used for probe failures and state changes.
func WithLogger(logger *observability.TracedLogger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithMetrics records probe latency and status.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}

// Monitor coordinates periodic probing of the backends.
//
// Thread-safety: all methods can be called concurrently.
type Monitor struct {
	config  Config
	probers []Prober
	now     func() time.Time
	logger  *observability.TracedLogger
	metrics *observability.Metrics

	mu        sync.RWMutex
	snapshots map[types.Backend]Snapshot

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a monitor for probers. Every backend starts UNKNOWN.
func New(config Config, probers []Prober, opts ...Option) *Monitor {
	m := &Monitor{
		config:    config.withDefaults(),
		probers:   probers,
		now:       time.Now,
		logger:    observability.NopLogger(),
		snapshots: make(map[types.Backend]Snapshot, len(probers)),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, p := range probers {
		m.snapshots[p.Identity()] = Snapshot{Backend: p.Identity(), Status: types.HealthStateUnknown}
	}
	return m
}

// Config returns the effective configuration.
func (m *Monitor) Config() Config {
	return m.config
}

// Start launches the background loop. The first probe round runs
// immediately, then one per Interval until Stop or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.done != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx, m.done)
	return nil
}

// Stop cancels the background loop and waits for the current round to finish.
// Stop on a monitor that was never started is a no-op.
func (m *Monitor) Stop() {
	m.lifecycle.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.lifecycle.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.CheckAll(ctx)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// CheckAll probes every backend concurrently and returns the new snapshots.
func (m *Monitor) CheckAll(ctx context.Context) []Snapshot {
	var g errgroup.Group
	for _, p := range m.probers {
		g.Go(func() error {
			m.check(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return m.Snapshots()
}

// Check probes a single backend.
func (m *Monitor) Check(ctx context.Context, backend types.Backend) (Snapshot, error) {
	for _, p := range m.probers {
		if p.Identity() == backend {
			return m.check(ctx, p), nil
		}
	}
	return Snapshot{}, fmt.Errorf("backend %q is not monitored", backend)
}

func (m *Monitor) check(ctx context.Context, p Prober) Snapshot {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	start := m.now()
	err := p.Probe(probeCtx)
	latency := m.now().Sub(start)

	// A round interrupted by Stop or the caller says nothing about the backend.
	if ctx.Err() != nil {
		return m.Snapshot(p.Identity())
	}

	next := Snapshot{
		Backend:       p.Identity(),
		LastCheckedAt: m.now(),
		Latency:       latency,
	}
	switch {
	case err != nil:
		next.Status = types.HealthStateUnhealthy
		next.Message = err.Error()
	case latency > m.config.DegradedLatency:
		next.Status = types.HealthStateDegraded
		next.Message = fmt.Sprintf("probe latency %s exceeds %s", latency, m.config.DegradedLatency)
	default:
		next.Status = types.HealthStateHealthy
	}

	m.mu.Lock()
	prev := m.snapshots[next.Backend]
	if err != nil {
		next.ConsecutiveFailures = prev.ConsecutiveFailures + 1
	}
	m.snapshots[next.Backend] = next
	m.mu.Unlock()

	m.metrics.ObserveProbe(next.Backend.String(), latency, next.Status.Usable())

	if err != nil {
		m.logger.Warn(ctx, "Health probe failed",
			"backend", next.Backend.String(),
			"latency", latency,
			"consecutive_failures", next.ConsecutiveFailures,
			"error", err)
	}
	if prev.Status != next.Status {
		m.logStateChange(ctx, next.Backend, prev.Status, next.Status, next.Message)
	}
	return next
}

// logStateChange logs health state transitions with appropriate severity.
// Degradation from HEALTHY logs at error, recovery to HEALTHY at info,
// everything else at warn. The first transition out of UNKNOWN is info.
func (m *Monitor) logStateChange(ctx context.Context, backend types.Backend, previous, current types.HealthState, message string) {
	args := []any{
		"backend", backend.String(),
		"previous_state", previous.String(),
		"current_state", current.String(),
		"message", message,
	}

	switch {
	case previous == types.HealthStateHealthy:
		m.logger.Error(ctx, "Backend health degraded", args...)
	case current == types.HealthStateHealthy, previous == types.HealthStateUnknown:
		m.logger.Info(ctx, "Backend health changed", args...)
	default:
		m.logger.Warn(ctx, "Backend health changed", args...)
	}
}

// Snapshot returns the latest snapshot for backend. Unmonitored backends
// report UNKNOWN.
func (m *Monitor) Snapshot(backend types.Backend) Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.snapshots[backend]; ok {
		return s
	}
	return Snapshot{Backend: backend, Status: types.HealthStateUnknown}
}

// Snapshots returns every backend's snapshot ordered by backend.
func (m *Monitor) Snapshots() []Snapshot {
	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Snapshot) int { return int(a.Backend) - int(b.Backend) })
	return out
}

// IsHealthy reports whether the last probe of backend returned HEALTHY.
func (m *Monitor) IsHealthy(backend types.Backend) bool {
	return m.Snapshot(backend).Status == types.HealthStateHealthy
}

// IsUsable reports whether the last probe of backend returned HEALTHY or
// DEGRADED. It is the recovery hint handed to the circuit breaker.
func (m *Monitor) IsUsable(backend types.Backend) bool {
	return m.Snapshot(backend).Status.Usable()
}
