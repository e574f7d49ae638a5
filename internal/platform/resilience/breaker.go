package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	perr "alertrecon/internal/platform/errors"
)

// BreakerState is the circuit state machine position
type BreakerState uint8

const (
	// StateClosed passes calls through and counts consecutive failures
	StateClosed BreakerState = iota
	// StateOpen rejects calls fast until the open timeout elapses
	StateOpen
	// StateHalfOpen probes the dependency; closes after enough successes
	StateHalfOpen
)

// String returns the lowercase state label
func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig controls the circuit breaker
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures to trip; <=0 -> 5
	SuccessThreshold int           // consecutive half-open successes to close; <=0 -> 2
	Timeout          time.Duration // open duration before a probe; <=0 -> 60s
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Minute
	}
	return c
}

// Breaker is a concurrency-safe three-state circuit breaker.
// One instance guards one upstream source
type Breaker struct {
	cfg BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time

	now func() time.Time // seam for tests
}

// NewBreaker constructs a Breaker from cfg
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now}
}

// State returns the current state, accounting for open-timeout expiry
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.lastFailure) >= b.cfg.Timeout {
		return StateHalfOpen
	}
	return b.state
}

// Do invokes fn through the breaker. While open and before the timeout it
// returns perr.ErrCircuitOpen without calling fn. A retry runner belongs
// inside fn so that exhausted retries count as a single breaker failure.
// A call abandoned by context cancellation says nothing about the upstream,
// so it is not recorded either way
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow() {
		return perr.ErrCircuitOpen
	}
	err := fn(ctx)
	if errors.Is(err, context.Canceled) {
		return err
	}
	b.record(err == nil)
	return err
}

// allow reports whether a call may proceed, transitioning OPEN -> HALF_OPEN
// when the timeout has elapsed
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	default: // StateOpen
		if b.now().Sub(b.lastFailure) >= b.cfg.Timeout {
			b.state = StateHalfOpen
			b.successes = 0
			return true
		}
		return false
	}
}

// record applies one call outcome to the state machine
func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		switch b.state {
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				b.state = StateClosed
				b.failures = 0
				b.successes = 0
			}
		default:
			b.failures = 0
		}
		return
	}

	b.lastFailure = b.now()
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.failures = 0
		b.successes = 0
	default:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = StateOpen
		}
	}
}
