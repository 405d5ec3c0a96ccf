// Package breaker implements the per-backend circuit breaker that gates
// whether the adapter may attempt a backend.
//
// The breaker is an explicit state machine. Every mutation goes through
// transition, a pure function of (circuit, event, now, config), so each edge
// can be tested without a backend. Breaker wraps it with a mutex, a clock and
// an optional state-change hook.
//
// State transitions:
//   - Closed -> Open: after FailureThreshold consecutive backend-level failures
//   - Open -> Half-Open: on the first Allow after RecoveryTimeout
//   - Half-Open -> Closed: after SuccessThreshold consecutive trial successes
//   - Half-Open -> Open: on any trial failure
//
// Callers classify outcomes before reporting them. Domain-level answers are
// reported with RecordNeutral and never move the counters.
//
// Allow returns a Ticket naming the generation the call was admitted under.
// Every state change starts a new generation, and outcomes reported with a
// ticket from an earlier generation are dropped, so a call admitted while
// Closed cannot settle or free a Half-Open trial.
package breaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// State represents the current state of a circuit breaker.
type State int

const (
	// StateClosed means the circuit is closed (normal operation, requests allowed)
	StateClosed State = iota

	// StateOpen means the circuit is open (too many failures, requests blocked)
	StateOpen

	// StateHalfOpen means the circuit is testing if the backend has recovered
	StateHalfOpen
)

// String returns a human-readable representation of the circuit state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config holds configuration for circuit breaker behavior.
type Config struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	FailureThreshold int `mapstructure:"failure_threshold" yaml:"failure_threshold" validate:"min=1"`

	// RecoveryTimeout is the duration to wait in Open before a trial call is allowed.
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout" yaml:"recovery_timeout" validate:"min=1ms"`

	// SuccessThreshold is the number of consecutive Half-Open successes required to close.
	SuccessThreshold int `mapstructure:"success_threshold" yaml:"success_threshold" validate:"min=1"`

	// HalfOpenMaxRequests bounds concurrent trial calls in Half-Open.
	HalfOpenMaxRequests int `mapstructure:"half_open_max_requests" yaml:"half_open_max_requests" validate:"min=1"`

	// HealthGatedRecovery lets a trial through before RecoveryTimeout when the
	// health monitor reports the backend usable and MinRecoveryTimeout has elapsed.
	HealthGatedRecovery bool `mapstructure:"health_gated_recovery" yaml:"health_gated_recovery"`

	// MinRecoveryTimeout is the floor for health-gated early trials.
	// Zero means RecoveryTimeout/2.
	MinRecoveryTimeout time.Duration `mapstructure:"min_recovery_timeout" yaml:"min_recovery_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		RecoveryTimeout:     30 * time.Second,
		SuccessThreshold:    2,
		HalfOpenMaxRequests: 1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = d.RecoveryTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.HalfOpenMaxRequests <= 0 {
		c.HalfOpenMaxRequests = d.HalfOpenMaxRequests
	}
	if c.MinRecoveryTimeout <= 0 || c.MinRecoveryTimeout > c.RecoveryTimeout {
		c.MinRecoveryTimeout = c.RecoveryTimeout / 2
	}
	return c
}

// Snapshot is a point-in-time copy of a breaker's state.
type Snapshot struct {
	Backend              types.Backend `json:"backend"`
	State                State         `json:"state"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	OpenedAt             time.Time     `json:"opened_at,omitempty"`
	LastFailure          time.Time     `json:"last_failure,omitempty"`
	TrialsInFlight       int           `json:"trials_in_flight"`
	Generation           uint64        `json:"generation"`
	FailureThreshold     int           `json:"failure_threshold"`
	RecoveryTimeout      time.Duration `json:"recovery_timeout"`
	SuccessThreshold     int           `json:"success_threshold"`
}

// StateChangeFunc is invoked after every state transition, outside the lock.
type StateChangeFunc func(backend types.Backend, from, to State)

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithStateChange registers a hook for state transitions.
func WithStateChange(fn StateChangeFunc) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

// WithRecoveryHint supplies the health signal used by HealthGatedRecovery.
func WithRecoveryHint(healthy func() bool) Option {
	return func(b *Breaker) {
		b.hint = healthy
	}
}

// Breaker guards a single backend.
//
// Thread-safe: All methods can be called concurrently.
//
// Example usage:
//
//	cb := breaker.New(types.BackendPrimary, breaker.DefaultConfig())
//
//	ticket, err := cb.Allow()
//	if err != nil {
//	    return err // fail fast, circuit open
//	}
//	records, err := client.Execute(ctx, q, params)
//	switch {
//	case err == nil:
//	    cb.RecordSuccess(ticket)
//	case types.IsDomain(err):
//	    cb.RecordNeutral(ticket)
//	default:
//	    cb.RecordFailure(ticket, err)
//	}
type Breaker struct {
	backend  types.Backend
	config   Config
	now      func() time.Time
	hint     func() bool
	onChange StateChangeFunc

	mu      sync.Mutex
	circuit circuit
}

// New creates a Closed breaker for backend.
func New(backend types.Backend, config Config, opts ...Option) *Breaker {
	b := &Breaker{
		backend: backend,
		config:  config.withDefaults(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Backend returns the backend this breaker guards.
func (b *Breaker) Backend() types.Backend {
	return b.backend
}

// Ticket identifies the generation a call was admitted under. The zero value
// is only meaningful alongside an Allow error.
type Ticket struct {
	generation uint64
}

// Allow checks if a call to the backend may proceed.
//
// Returns a ticket if the call should proceed, or an *OpenError if the
// circuit is open or Half-Open has no free trial slot. An admission in
// Half-Open reserves a trial slot; the caller must report the outcome with
// one of the Record methods, passing the ticket back, to release it.
func (b *Breaker) Allow() (Ticket, error) {
	ev := eventAllow
	if b.config.HealthGatedRecovery && b.hint != nil && b.hint() {
		ev = eventAllowHinted
	}

	b.mu.Lock()
	now := b.now()
	from := b.circuit.state
	next, allowed := transition(b.circuit, ev, 0, now, b.config)
	b.circuit = next
	openedAt := next.openedAt
	b.mu.Unlock()

	b.notify(from, next.state)
	if allowed {
		return Ticket{generation: next.generation}, nil
	}
	return Ticket{}, &OpenError{
		Backend:    b.backend,
		OpenedAt:   openedAt,
		RetryAfter: openedAt.Add(b.config.RecoveryTimeout),
	}
}

// RecordSuccess records a successful backend call. It reports whether the
// outcome counted; a stale ticket is ignored.
func (b *Breaker) RecordSuccess(t Ticket) bool {
	return b.apply(eventSuccess, t)
}

// RecordFailure records a backend-level failure (timeout, refusal, transport).
// Domain-level errors must be reported with RecordNeutral instead.
func (b *Breaker) RecordFailure(t Ticket, err error) bool {
	return b.apply(eventFailure, t)
}

// RecordNeutral records an outcome that says nothing about availability,
// such as a domain-level "no such entity" answer. It only releases a trial slot.
func (b *Breaker) RecordNeutral(t Ticket) bool {
	return b.apply(eventNeutral, t)
}

// Reset forces the circuit back to Closed with all counters cleared.
// Outstanding tickets become stale.
func (b *Breaker) Reset() {
	b.apply(eventReset, Ticket{})
}

// State returns the current state. An Open circuit whose recovery timeout has
// elapsed reads as Half-Open; the actual transition happens in Allow.
func (b *Breaker) State() State {
	return b.Snapshot().State
}

// Snapshot returns a copy of the breaker state for monitoring.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	c := b.circuit
	now := b.now()
	b.mu.Unlock()

	state := c.state
	if state == StateOpen && now.Sub(c.openedAt) >= b.config.RecoveryTimeout {
		state = StateHalfOpen
	}

	snap := Snapshot{
		Backend:              b.backend,
		State:                state,
		ConsecutiveFailures:  c.failures,
		ConsecutiveSuccesses: c.successes,
		LastFailure:          c.lastFailure,
		TrialsInFlight:       c.trials,
		Generation:           c.generation,
		FailureThreshold:     b.config.FailureThreshold,
		RecoveryTimeout:      b.config.RecoveryTimeout,
		SuccessThreshold:     b.config.SuccessThreshold,
	}
	if c.state != StateClosed {
		snap.OpenedAt = c.openedAt
	}
	return snap
}

func (b *Breaker) apply(ev event, t Ticket) bool {
	b.mu.Lock()
	from := b.circuit.state
	next, applied := transition(b.circuit, ev, t.generation, b.now(), b.config)
	b.circuit = next
	b.mu.Unlock()

	b.notify(from, next.state)
	return applied
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onChange != nil {
		b.onChange(b.backend, from, to)
	}
}

// OpenError is returned when a circuit is open and calls are blocked.
type OpenError struct {
	Backend    types.Backend
	OpenedAt   time.Time
	RetryAfter time.Time
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for %s backend (opened at %s, retry after %s)",
		e.Backend, e.OpenedAt.Format(time.RFC3339), e.RetryAfter.Format(time.RFC3339))
}

// Unwrap exposes a transient CIRCUIT_OPEN error so errors.Is and
// types.KindOf see an open circuit as a backend-level failure.
func (e *OpenError) Unwrap() error {
	return types.NewTransientError(types.CIRCUIT_OPEN, e.Backend, "circuit open", nil)
}

// ErrCircuitOpen can be used with errors.Is to detect an open circuit.
var ErrCircuitOpen = types.NewError(types.CIRCUIT_OPEN, "circuit open")
