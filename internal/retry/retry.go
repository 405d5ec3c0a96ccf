// Package retry wraps a backend call in a bounded retry loop with exponential
// backoff. The loop itself is thin; every outcome goes through Decide, so the
// decision table is what tests pin down.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Config provides retry configuration.
type Config struct {
	// MaxAttempts is the total number of attempts per backend, including the first.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=1,max=20"`
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff" validate:"min=0"`
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `mapstructure:"max_backoff" yaml:"max_backoff" validate:"gtefield=InitialBackoff"`
	// Multiplier grows the delay after each attempt (typically 2.0).
	Multiplier float64 `mapstructure:"multiplier" yaml:"multiplier" validate:"gte=1,lte=1000"`
	// Jitter spreads each delay by up to ±25% to avoid synchronized retries.
	Jitter bool `mapstructure:"jitter" yaml:"jitter"`
}

// DefaultConfig returns sensible defaults for backend calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
	}
}

// Attempt is one try at the guarded operation. attempt is 1-based.
type Attempt func(ctx context.Context, attempt int) error

// Outcome summarizes a Run.
type Outcome struct {
	// Decision is Done, FailFast or Fallback; never Retry.
	Decision Decision
	// Attempts is the number of times the operation was invoked.
	Attempts int
	// Err is the last error, nil when Decision is Done.
	Err error
}

// Policy runs attempts according to a Config.
// Safe for concurrent use.
type Policy struct {
	cfg     Config
	sleep   func(ctx context.Context, d time.Duration) error
	onRetry func(attempt int, err error, delay time.Duration)
}

// Option configures a Policy.
type Option func(*Policy)

// WithSleep replaces the context-aware sleep, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Policy) {
		p.sleep = sleep
	}
}

// OnRetry registers a hook invoked before each backoff sleep.
func OnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *Policy) {
		p.onRetry = fn
	}
}

// New creates a Policy. Zero fields fall back to DefaultConfig values.
func New(cfg Config, opts ...Option) *Policy {
	d := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff < 0 {
		cfg.InitialBackoff = 0
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = d.MaxBackoff
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = d.Multiplier
	}

	p := &Policy{cfg: cfg, sleep: sleepContext}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// Run invokes fn until Decide says to stop. It never sleeps after the final
// attempt and abandons a backoff sleep as soon as ctx is done.
func (p *Policy) Run(ctx context.Context, fn Attempt) Outcome {
	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)

		decision := Decide(ctx, err, attempt, p.cfg.MaxAttempts)
		if decision != Retry {
			return Outcome{Decision: decision, Attempts: attempt, Err: err}
		}

		delay := p.Backoff(attempt)
		if p.onRetry != nil {
			p.onRetry(attempt, err, delay)
		}
		if serr := p.sleep(ctx, delay); serr != nil {
			// The last backend error is more useful to the caller than ctx.Err.
			return Outcome{Decision: FailFast, Attempts: attempt, Err: err}
		}
	}
}

// Backoff returns the delay after the given failed attempt (1-based):
// InitialBackoff * Multiplier^(attempt-1), capped at MaxBackoff. Jitter spreads
// it by ±25% but never past MaxBackoff.
func (p *Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.cfg.InitialBackoff) * math.Pow(p.cfg.Multiplier, float64(attempt-1))
	if base > float64(p.cfg.MaxBackoff) || math.IsInf(base, 0) || math.IsNaN(base) {
		base = float64(p.cfg.MaxBackoff)
	}
	delay := time.Duration(base)

	if p.cfg.Jitter && delay > 0 {
		spread := int64(delay / 4)
		if spread > 0 {
			delay += time.Duration(rand.Int64N(2*spread+1) - spread)
		}
		delay = min(delay, p.cfg.MaxBackoff)
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
