package retry

import (
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	policy := Policy{
		MaxAttempts: 5,
		BaseDelay:   50 * time.Millisecond,
		Sleeper:     func(d time.Duration) { delays = append(delays, d) },
	}

	calls := 0
	err := policy.Do(func() error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %d", len(want), len(delays))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleeper: func(time.Duration) {}}
	calls := 0
	err := policy.Do(func() error {
		calls++
		return errors.New("still locked")
	}, nil)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	policy := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Sleeper: func(time.Duration) {}}
	calls := 0
	err := policy.Do(func() error {
		calls++
		return fatal
	}, func(err error) bool { return !errors.Is(err, fatal) })
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestDelayCapsAtMax(t *testing.T) {
	policy := Policy{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: 200 * time.Millisecond}
	if d := policy.delay(6); d != 200*time.Millisecond {
		t.Fatalf("expected capped delay, got %v", d)
	}
}
