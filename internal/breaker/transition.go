package breaker

import "time"

// event is an input to the state machine.
type event int

const (
	eventAllow event = iota
	// eventAllowHinted is an Allow made while the health monitor reports the
	// backend usable; Open may hand out a trial after MinRecoveryTimeout.
	eventAllowHinted
	eventSuccess
	eventFailure
	eventNeutral
	eventReset
)

// circuit is the breaker's mutable state. Values are copied, never shared.
type circuit struct {
	state       State
	failures    int
	successes   int
	openedAt    time.Time
	lastFailure time.Time
	// trials counts Half-Open calls that were allowed and not yet reported.
	trials int
	// generation changes on every state change. Calls are admitted under one
	// generation and their outcomes only count within it.
	generation uint64
}

// enter moves c to state s and starts a new generation.
func (c circuit) enter(s State) circuit {
	c.state = s
	c.generation++
	return c
}

// transition applies ev to c and returns the next circuit.
//
// For the allow events the bool reports whether the call may proceed, and the
// call is admitted under the returned circuit's generation. For the outcome
// events gen is the generation the call was admitted under; an outcome from
// an earlier generation is stale and dropped, and the bool reports false.
func transition(c circuit, ev event, gen uint64, now time.Time, cfg Config) (circuit, bool) {
	switch ev {
	case eventAllow, eventAllowHinted:
		return allow(c, ev, now, cfg)

	case eventReset:
		return circuit{state: StateClosed, generation: c.generation + 1}, true
	}

	if gen != c.generation {
		return c, false
	}

	switch ev {
	case eventSuccess:
		switch c.state {
		case StateClosed:
			c.failures = 0
			c.successes++
		case StateHalfOpen:
			c.trials = releaseTrial(c.trials)
			c.successes++
			if c.successes >= cfg.SuccessThreshold {
				c = circuit{lastFailure: c.lastFailure, generation: c.generation}.enter(StateClosed)
			}
		}

	case eventFailure:
		c.lastFailure = now
		switch c.state {
		case StateClosed:
			c.failures++
			c.successes = 0
			if c.failures >= cfg.FailureThreshold {
				c = c.enter(StateOpen)
				c.openedAt = now
			}
		case StateHalfOpen:
			c = c.enter(StateOpen)
			c.openedAt = now
			c.failures++
			c.successes = 0
			c.trials = 0
		}

	case eventNeutral:
		if c.state == StateHalfOpen {
			c.trials = releaseTrial(c.trials)
		}
	}
	return c, true
}

func allow(c circuit, ev event, now time.Time, cfg Config) (circuit, bool) {
	switch c.state {
	case StateClosed:
		return c, true

	case StateOpen:
		wait := cfg.RecoveryTimeout
		if ev == eventAllowHinted {
			wait = cfg.MinRecoveryTimeout
		}
		if now.Sub(c.openedAt) < wait {
			return c, false
		}
		c = c.enter(StateHalfOpen)
		c.successes = 0
		c.trials = 1
		return c, true

	case StateHalfOpen:
		if c.trials < cfg.HalfOpenMaxRequests {
			c.trials++
			return c, true
		}
		return c, false
	}
	return c, false
}

func releaseTrial(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}
