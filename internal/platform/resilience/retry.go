// Package resilience provides the retry runner and circuit breaker that wrap
// every external source call
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	perr "alertrecon/internal/platform/errors"
)

// RetryConfig controls the retry runner
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first; <=0 -> 1
	Initial     time.Duration // delay before attempt 1 retry; <=0 -> 500ms
	Base        float64       // exponential base; <=1 -> 2.0
	MaxDelay    time.Duration // cap per delay; <Initial -> 30s
	Jitter      bool          // multiply each delay by uniform [0.5, 1.0)
}

// withDefaults normalizes out-of-range fields
func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.Initial <= 0 {
		c.Initial = 500 * time.Millisecond
	}
	if c.Base <= 1 {
		c.Base = 2.0
	}
	if c.MaxDelay < c.Initial {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// Runner retries an operation on transient failures with exponential backoff
type Runner struct {
	cfg RetryConfig

	// seams for tests
	sleep func(context.Context, time.Duration) error
	randf func() float64
}

// NewRunner constructs a Runner from cfg
func NewRunner(cfg RetryConfig) *Runner {
	return &Runner{
		cfg:   cfg.withDefaults(),
		sleep: sleepCtx,
		randf: rand.Float64,
	}
}

// Do runs fn up to MaxAttempts times. It retries only failures classified as
// transient (perr.Retryable or ErrorCodeUnavailable); other errors return
// immediately. The last error is returned when attempts are exhausted
func (r *Runner) Do(ctx context.Context, fn func(context.Context) error) error {
	var last error
	for k := 0; k < r.cfg.MaxAttempts; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		last = err

		if !perr.Retryable(err) {
			return last
		}
		if k == r.cfg.MaxAttempts-1 {
			break
		}
		if serr := r.sleep(ctx, r.delay(k)); serr != nil {
			return serr
		}
	}
	return last
}

// delay computes the backoff for attempt k (0-indexed)
func (r *Runner) delay(k int) time.Duration {
	d := float64(r.cfg.Initial) * math.Pow(r.cfg.Base, float64(k))
	if d > float64(r.cfg.MaxDelay) {
		d = float64(r.cfg.MaxDelay)
	}
	if r.cfg.Jitter {
		d *= 0.5 + 0.5*r.randf()
	}
	return time.Duration(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
