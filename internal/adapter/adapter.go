// Package adapter is the query router. It answers named queries from the
// response cache when it can, otherwise from the primary backend, and fails
// over to the fallback backend when the primary is unavailable.
//
// Each backend is a lane: the client, its circuit breaker and its retry
// policy. Lanes are tried in order. A domain answer from any lane is final.
// Only a lane that is exhausted (open circuit or transient failures with no
// retries left) hands over to the next.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ejmockler/indra-cogex-mcp/internal/backend"
	"github.com/ejmockler/indra-cogex-mcp/internal/breaker"
	"github.com/ejmockler/indra-cogex-mcp/internal/cache"
	"github.com/ejmockler/indra-cogex-mcp/internal/catalog"
	"github.com/ejmockler/indra-cogex-mcp/internal/health"
	"github.com/ejmockler/indra-cogex-mcp/internal/observability"
	"github.com/ejmockler/indra-cogex-mcp/internal/pool"
	"github.com/ejmockler/indra-cogex-mcp/internal/retry"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

const tracerName = "github.com/ejmockler/indra-cogex-mcp/internal/adapter"

// Querier is the adapter's caller-facing contract.
type Querier interface {
	Execute(ctx context.Context, req Request) (Result, error)
	Status() Status
}

// Config holds the router settings shared by every lane.
type Config struct {
	Breaker breaker.Config
	Retry   retry.Config
	Cache   cache.Config
	Health  health.Config
	// DefaultTimeout bounds requests that carry no timeout. Zero disables it.
	DefaultTimeout time.Duration
}

// Option configures an Adapter.
type Option func(*options)

type options struct {
	logger  *observability.TracedLogger
	metrics *observability.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(logger *observability.TracedLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records router, breaker, cache, pool and health metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithTracer sets the tracer used for per-attempt spans. Defaults to the
// global tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithClock replaces time.Now in the breakers, the cache and the health
// monitor, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithSleep replaces the retry backoff sleep, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

// lane is one backend with its own breaker and retry policy.
type lane struct {
	client  backend.Client
	breaker *breaker.Breaker
	policy  *retry.Policy
}

// poolReporter is implemented by clients that hold a session pool.
type poolReporter interface {
	PoolStats() pool.Stats
}

// Adapter routes named queries across the backends.
//
// Thread-safety: one Adapter is shared by all callers in a process.
type Adapter struct {
	cfg     Config
	catalog catalog.Catalog
	lanes   []*lane
	cache   *cache.Cache[Result]
	monitor *health.Monitor
	group   singleflight.Group

	logger  *observability.TracedLogger
	metrics *observability.Metrics
	tracer  trace.Tracer
	now     func() time.Time

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New builds an adapter over clients, which are tried in the given order
// (primary first). The adapter takes ownership of the clients and closes them
// on Close. Background work does not start until Start.
func New(cfg Config, cat catalog.Catalog, clients []backend.Client, opts ...Option) (*Adapter, error) {
	if cat == nil {
		return nil, types.NewConfigError(types.CONFIG_VALIDATION_FAILED, "catalog is required", nil)
	}
	if len(clients) == 0 {
		return nil, types.NewConfigError(types.CONFIG_VALIDATION_FAILED, "at least one backend is required", nil)
	}

	o := options{
		logger: observability.NopLogger(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Adapter{
		cfg:     cfg,
		catalog: cat,
		logger:  o.logger.Named("adapter"),
		metrics: o.metrics,
		tracer:  o.tracer,
		now:     o.now,
	}

	probers := make([]health.Prober, len(clients))
	for i, c := range clients {
		probers[i] = c
	}
	a.monitor = health.New(cfg.Health, probers,
		health.WithClock(o.now),
		health.WithLogger(o.logger.Named("health")),
		health.WithMetrics(o.metrics),
	)

	cacheOpts := []cache.Option{cache.WithClock(o.now)}
	if reg := o.metrics.Registerer(); reg != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics(reg, o.metrics.Namespace()))
	}
	var err error
	a.cache, err = cache.New[Result](cfg.Cache, cacheOpts...)
	if err != nil {
		return nil, types.NewConfigError(types.CONFIG_VALIDATION_FAILED, "invalid cache configuration", err)
	}

	seen := make(map[types.Backend]bool, len(clients))
	for _, c := range clients {
		id := c.Identity()
		if seen[id] {
			return nil, types.NewConfigError(types.CONFIG_VALIDATION_FAILED,
				fmt.Sprintf("backend %s configured twice", id), nil)
		}
		seen[id] = true

		brOpts := []breaker.Option{
			breaker.WithClock(o.now),
			breaker.WithStateChange(a.onBreakerChange),
			breaker.WithRecoveryHint(func() bool { return a.monitor.IsUsable(id) }),
		}
		retryOpts := []retry.Option{retry.OnRetry(a.onRetry(id))}
		if o.sleep != nil {
			retryOpts = append(retryOpts, retry.WithSleep(o.sleep))
		}
		a.lanes = append(a.lanes, &lane{
			client:  c,
			breaker: breaker.New(id, cfg.Breaker, brOpts...),
			policy:  retry.New(cfg.Retry, retryOpts...),
		})
		a.metrics.SetBreakerState(id.String(), int(breaker.StateClosed))
	}

	if err := a.registerPoolGauges(); err != nil {
		return nil, types.NewConfigError(types.CONFIG_VALIDATION_FAILED, "failed to register pool metrics", err)
	}
	return a, nil
}

func (a *Adapter) registerPoolGauges() error {
	for _, l := range a.lanes {
		pr, ok := l.client.(poolReporter)
		if !ok {
			continue
		}
		if err := a.metrics.RegisterGaugeFunc("adapter", "pool_in_use", "Sessions checked out of the primary pool",
			func() float64 { return float64(pr.PoolStats().InUse) }); err != nil {
			return err
		}
		return a.metrics.RegisterGaugeFunc("adapter", "pool_waiters", "Callers waiting for a primary pool session",
			func() float64 { return float64(pr.PoolStats().Waiters) })
	}
	return nil
}

// Start launches the health monitor and the cache sweeper. They stop on
// Close or when ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	if a.closed.Load() {
		return types.AdapterClosed()
	}
	if err := a.monitor.Start(ctx); err != nil {
		return err
	}
	a.cache.Start(ctx)
	return nil
}

// CheckHealth runs one probe round immediately and returns the snapshots.
func (a *Adapter) CheckHealth(ctx context.Context) []health.Snapshot {
	return a.monitor.CheckAll(ctx)
}

// Catalog returns the catalog queries are resolved against.
func (a *Adapter) Catalog() catalog.Catalog {
	return a.catalog
}

// Close stops background work, then closes every backend client. Execute
// calls that start after Close fail with ADAPTER_CLOSED. Close is idempotent.
func (a *Adapter) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.monitor.Stop()

		errs := []error{a.cache.Close()}
		for _, l := range a.lanes {
			if err := l.client.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close %s backend: %w", l.client.Identity(), err))
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func (a *Adapter) onBreakerChange(b types.Backend, from, to breaker.State) {
	a.metrics.SetBreakerState(b.String(), int(to))
	a.logger.Warn(context.Background(), "Circuit breaker state changed",
		"backend", b.String(),
		"from", from.String(),
		"to", to.String())
}

func (a *Adapter) onRetry(b types.Backend) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		a.logger.Debug(context.Background(), "Retrying backend call",
			"backend", b.String(),
			"attempt", attempt,
			"delay", delay,
			"error", err)
	}
}

// attemptLabel is the metrics label for a single backend call.
func attemptLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case types.IsDomain(err):
		return "domain"
	}
	if code := types.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}
