// Package retry provides a small bounded-backoff policy shared by call sites
// that contend with transient filesystem errors (atomic renames held open by
// another process, temp files pinned by an external tool).
package retry

import "time"

// Policy describes a bounded exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Sleeper overrides how delays are performed. Nil means time.Sleep.
	Sleeper func(time.Duration)
}

// Default is the policy used for atomic rename contention.
var Default = Policy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second}

// Cleanup is the policy used for temp-file deletion blocked by external locks.
var Cleanup = Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

// Do invokes fn until it succeeds, retrying transient failures with
// exponential backoff. The last error is returned once attempts are
// exhausted. retryable decides whether an error is worth retrying; nil means
// every error is.
func (p Policy) Do(fn func() error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleeper
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt < attempts-1 {
			sleep(p.delay(attempt))
		}
	}
	return err
}

func (p Policy) delay(attempt int) time.Duration {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
