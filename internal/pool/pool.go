// Package pool provides a bounded pool of backend sessions.
//
// At most MaxSize sessions exist at any time. Acquirers beyond that bound wait
// on a weighted semaphore until a session is released or their timeout fires.
// Idle sessions older than MaxLifetime are retired lazily when an acquirer
// finds them, never by a background reaper. Sessions that saw an error are
// discarded rather than returned, and their slot is refilled on demand.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// Session is a pooled backend handle.
type Session interface {
	Close(ctx context.Context) error
}

// Factory opens new sessions for the pool.
type Factory[S Session] interface {
	Open(ctx context.Context) (S, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc[S Session] func(ctx context.Context) (S, error)

// Open calls f(ctx).
func (f FactoryFunc[S]) Open(ctx context.Context) (S, error) {
	return f(ctx)
}

// Config holds pool sizing and lifetime settings.
type Config struct {
	// MaxSize is the hard upper bound on live sessions.
	MaxSize int `mapstructure:"max_size" yaml:"max_size" validate:"min=1"`
	// AcquireTimeout bounds how long Acquire waits for a free slot.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout" validate:"min=1ms"`
	// MaxLifetime retires idle sessions older than this. Zero disables retirement.
	MaxLifetime time.Duration `mapstructure:"max_lifetime" yaml:"max_lifetime" validate:"min=0"`
}

// DefaultConfig returns sensible pool defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:        10,
		AcquireTimeout: 5 * time.Second,
		MaxLifetime:    30 * time.Minute,
	}
}

// Conn is a session checked out of the pool. It must be handed back with
// exactly one call to Release or Discard.
type Conn[S Session] struct {
	Session    S
	CreatedAt  time.Time
	LastUsedAt time.Time

	id     uint64
	inUse  bool
	closed bool
}

// ID returns a pool-unique identifier for logging.
func (c *Conn[S]) ID() uint64 {
	return c.id
}

// Stats reports pool utilization.
type Stats struct {
	MaxSize   int    `json:"max_size"`
	InUse     int    `json:"in_use"`
	Idle      int    `json:"idle"`
	Waiters   int64  `json:"waiters"`
	Created   uint64 `json:"created"`
	Destroyed uint64 `json:"destroyed"`
	Retired   uint64 `json:"retired"`
}

// Option configures a Pool.
type Option[S Session] func(*Pool[S])

// WithClock replaces time.Now, mainly for tests.
func WithClock[S Session](now func() time.Time) Option[S] {
	return func(p *Pool[S]) {
		p.now = now
	}
}

// Pool is a bounded, lazily filled set of sessions.
//
// All operations are thread-safe and can be called concurrently.
//
// Example usage:
//
//	p := pool.New[neo4j.SessionWithContext](cfg, factory)
//	defer p.Close(ctx)
//
//	conn, err := p.Acquire(ctx, 0)
//	if err != nil {
//	    return err // POOL_EXHAUSTED on timeout
//	}
//	if err := use(conn.Session); err != nil {
//	    p.Discard(conn)
//	    return err
//	}
//	p.Release(conn)
type Pool[S Session] struct {
	cfg     Config
	factory Factory[S]
	sem     *semaphore.Weighted
	now     func() time.Time

	mu     sync.Mutex
	idle   []*Conn[S]
	inUse  int
	closed bool
	nextID uint64

	waiters   atomic.Int64
	created   atomic.Uint64
	destroyed atomic.Uint64
	retired   atomic.Uint64
}

// New creates an empty pool. Sessions are opened on demand.
func New[S Session](cfg Config, factory Factory[S], opts ...Option[S]) *Pool[S] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultConfig().AcquireTimeout
	}

	p := &Pool[S]{
		cfg:     cfg,
		factory: factory,
		sem:     semaphore.NewWeighted(int64(cfg.MaxSize)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire checks out a session, waiting up to timeout (AcquireTimeout when
// zero) for a free slot. Idle sessions past MaxLifetime are closed and
// skipped. When no idle session is left, a new one is opened.
//
// Returns a transient POOL_EXHAUSTED error when the wait times out or ctx is
// done, and POOL_CLOSED after Close.
func (p *Pool[S]) Acquire(ctx context.Context, timeout time.Duration) (*Conn[S], error) {
	if p.isClosed() {
		return nil, errClosed()
	}
	if timeout <= 0 {
		timeout = p.cfg.AcquireTimeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.waiters.Add(1)
	err := p.sem.Acquire(waitCtx, 1)
	p.waiters.Add(-1)
	if err != nil {
		msg := fmt.Sprintf("no session available within %s (max_size=%d)", timeout, p.cfg.MaxSize)
		if ctx.Err() != nil {
			msg = "acquire abandoned by caller"
		}
		return nil, types.NewTransientError(types.POOL_EXHAUSTED, types.BackendUnspecified, msg, err)
	}

	conn, expired, err := p.takeIdle()
	p.closeAll(ctx, expired)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	if conn != nil {
		return conn, nil
	}

	session, err := p.factory.Open(ctx)
	if err != nil {
		p.sem.Release(1)
		if types.KindOf(err) != types.KindUnknown {
			return nil, err
		}
		return nil, types.NewTransientError(types.BACKEND_UNREACHABLE, types.BackendUnspecified, "failed to open session", err)
	}
	p.created.Add(1)

	now := p.now()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		p.destroyed.Add(1)
		_ = session.Close(context.WithoutCancel(ctx))
		return nil, errClosed()
	}
	p.nextID++
	conn = &Conn[S]{Session: session, CreatedAt: now, LastUsedAt: now, id: p.nextID, inUse: true}
	p.inUse++
	p.mu.Unlock()

	return conn, nil
}

// takeIdle pops the most recently used idle session that is still within its
// lifetime. Expired sessions are returned for the caller to close outside the lock.
func (p *Pool[S]) takeIdle() (*Conn[S], []*Conn[S], error) {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, nil, errClosed()
	}

	var expired []*Conn[S]
	for len(p.idle) > 0 {
		c := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		if p.cfg.MaxLifetime > 0 && now.Sub(c.CreatedAt) >= p.cfg.MaxLifetime {
			c.closed = true
			expired = append(expired, c)
			continue
		}

		c.inUse = true
		c.LastUsedAt = now
		p.inUse++
		return c, expired, nil
	}
	return nil, expired, nil
}

// Release returns a healthy session to the pool. Releasing a Conn that is not
// checked out is a no-op.
func (p *Pool[S]) Release(c *Conn[S]) {
	if c == nil {
		return
	}

	p.mu.Lock()
	if !c.inUse {
		p.mu.Unlock()
		return
	}
	c.inUse = false
	p.inUse--

	if p.closed {
		c.closed = true
		p.mu.Unlock()
		p.sem.Release(1)
		p.destroy(context.Background(), c)
		return
	}

	c.LastUsedAt = p.now()
	p.idle = append(p.idle, c)
	p.mu.Unlock()

	p.sem.Release(1)
}

// Discard closes a session that saw an error and frees its slot. A
// replacement is opened by a later Acquire.
func (p *Pool[S]) Discard(c *Conn[S]) {
	if c == nil {
		return
	}

	p.mu.Lock()
	if !c.inUse {
		p.mu.Unlock()
		return
	}
	c.inUse = false
	c.closed = true
	p.inUse--
	p.mu.Unlock()

	p.sem.Release(1)
	p.destroy(context.Background(), c)
}

// Stats returns a snapshot of pool utilization.
func (p *Pool[S]) Stats() Stats {
	p.mu.Lock()
	inUse, idle := p.inUse, len(p.idle)
	p.mu.Unlock()

	return Stats{
		MaxSize:   p.cfg.MaxSize,
		InUse:     inUse,
		Idle:      idle,
		Waiters:   p.waiters.Load(),
		Created:   p.created.Load(),
		Destroyed: p.destroyed.Load(),
		Retired:   p.retired.Load(),
	}
}

// Close closes idle sessions and fails all future acquisitions. Sessions
// still checked out are closed when they are released.
func (p *Pool[S]) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs []error
	for _, c := range idle {
		c.closed = true
		p.destroyed.Add(1)
		if err := c.Session.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %d: %w", c.id, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pool[S]) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool[S]) closeAll(ctx context.Context, expired []*Conn[S]) {
	for _, c := range expired {
		p.retired.Add(1)
		p.destroy(context.WithoutCancel(ctx), c)
	}
}

func (p *Pool[S]) destroy(ctx context.Context, c *Conn[S]) {
	p.destroyed.Add(1)
	_ = c.Session.Close(ctx)
}

func errClosed() error {
	return types.NewTransientError(types.POOL_CLOSED, types.BackendUnspecified, "pool is closed", nil)
}
