package retry

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 1 * time.Second
	rateLimitFloorStep = 5 * time.Second
)

// Options controls backoff behavior. The policy is mechanism, not judgment:
// it never inspects errors itself. Callers that want rate-limit-aware delays
// supply IsRateLimited.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// IsRateLimited reports whether a failure signals rate limiting. When it
	// returns true the delay floor is raised to 5s*(attempt+1) and jitter is
	// widened to 20%.
	IsRateLimited func(error) bool

	// sleep overrides the wait between attempts in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Do runs op up to MaxAttempts times with exponential backoff and jitter.
// The last error is returned unchanged so callers can still classify it.
func Do(ctx context.Context, opts Options, op func() error) error {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	wait := opts.sleep
	if wait == nil {
		wait = sleep
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts-1 {
			break
		}

		rateLimited := opts.IsRateLimited != nil && opts.IsRateLimited(lastErr)
		if err := wait(ctx, Delay(attempt, baseDelay, rateLimited)); err != nil {
			return err
		}
	}
	return lastErr
}

// Delay computes the wait before the retry following attempt (0-based).
func Delay(attempt int, baseDelay time.Duration, rateLimited bool) time.Duration {
	delay := baseDelay << uint(attempt)
	jitterFraction := 0.1
	if rateLimited {
		floor := rateLimitFloorStep * time.Duration(attempt+1)
		if delay < floor {
			delay = floor
		}
		jitterFraction = 0.2
	}
	jitter := time.Duration(rand.Float64() * jitterFraction * float64(delay))
	return delay + jitter
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
