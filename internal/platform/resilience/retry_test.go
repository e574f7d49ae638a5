package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	perr "alertrecon/internal/platform/errors"
)

func noSleep(r *Runner) *Runner {
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

func TestRetryTransientUntilSuccess(t *testing.T) {
	r := noSleep(NewRunner(RetryConfig{MaxAttempts: 4, Initial: time.Millisecond}))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return perr.Unavailablef("flaky upstream")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	r := noSleep(NewRunner(RetryConfig{MaxAttempts: 3, Initial: time.Millisecond}))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return perr.Unavailablef("still down")
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
}

func TestRetryPermanentFailsImmediately(t *testing.T) {
	r := noSleep(NewRunner(RetryConfig{MaxAttempts: 5, Initial: time.Millisecond}))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return perr.Upstreamf("bad request upstream")
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on permanent failure)", calls)
	}
	if !perr.IsCode(err, perr.ErrorCodeUpstream) {
		t.Fatalf("err = %v, want upstream", err)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	r := NewRunner(RetryConfig{MaxAttempts: 10, Initial: time.Millisecond})
	r.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := r.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return perr.Unavailablef("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryDelayGrowsAndCaps(t *testing.T) {
	r := NewRunner(RetryConfig{
		MaxAttempts: 5,
		Initial:     100 * time.Millisecond,
		Base:        2,
		MaxDelay:    300 * time.Millisecond,
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond, // capped
		300 * time.Millisecond,
	}
	for k, w := range want {
		if got := r.delay(k); got != w {
			t.Fatalf("delay(%d) = %v, want %v", k, got, w)
		}
	}
}

func TestRetryJitterStaysInRange(t *testing.T) {
	r := NewRunner(RetryConfig{MaxAttempts: 2, Initial: 100 * time.Millisecond, Jitter: true})
	r.randf = func() float64 { return 0 }
	if got := r.delay(0); got != 50*time.Millisecond {
		t.Fatalf("delay with randf=0: %v, want 50ms", got)
	}
	r.randf = func() float64 { return 0.999999 }
	if got := r.delay(0); got < 50*time.Millisecond || got > 100*time.Millisecond {
		t.Fatalf("delay with randf~1: %v, want within (50ms, 100ms]", got)
	}
}
