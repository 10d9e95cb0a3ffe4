package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestDoInvokesExactlyMaxAttempts(t *testing.T) {
	failure := errors.New("always fails")
	calls := 0

	err := Do(context.Background(), Options{MaxAttempts: 3, BaseDelay: time.Millisecond, sleep: noSleep}, func() error {
		calls++
		return failure
	})

	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !errors.Is(err, failure) {
		t.Fatalf("expected the original error unchanged, got %v", err)
	}
}

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{MaxAttempts: 5, BaseDelay: time.Millisecond, sleep: noSleep}, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Options{MaxAttempts: 3, BaseDelay: time.Hour}, func() error {
		calls++
		return errors.New("transient")
	})

	if calls != 1 {
		t.Fatalf("expected a single attempt before the canceled wait, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDelayExponentialSchedule(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt, want := range []time.Duration{100, 200, 400, 800} {
		d := Delay(attempt, base, false)
		lower := want * time.Millisecond
		upper := lower + lower/10
		if d < lower || d > upper {
			t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, lower, upper)
		}
	}
}

func TestDelayRateLimitFloor(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		floor := 5 * time.Second * time.Duration(attempt+1)
		d := Delay(attempt, base, true)
		upper := floor + time.Duration(0.2*float64(floor))
		if d < floor || d > upper {
			t.Fatalf("attempt %d: rate-limited delay %v outside [%v, %v]", attempt, d, floor, upper)
		}
	}
}

func TestDoRateLimitedDelaysWidened(t *testing.T) {
	rateLimitErr := errors.New("rate limit exceeded")
	var waits []time.Duration

	err := Do(context.Background(), Options{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		IsRateLimited: func(err error) bool { return errors.Is(err, rateLimitErr) },
		sleep: func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}, func() error {
		return rateLimitErr
	})

	if !errors.Is(err, rateLimitErr) {
		t.Fatalf("expected the rate limit error re-raised, got %v", err)
	}
	if len(waits) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(waits))
	}
	for i, d := range waits {
		floor := 5 * time.Second * time.Duration(i+1)
		if d < floor {
			t.Fatalf("wait %d: expected at least %v, got %v", i, floor, d)
		}
	}
}
