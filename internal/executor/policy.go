package executor

import (
	"context"
	"errors"
	"time"
)

// Policy controls request pacing and retry scheduling.
type Policy struct {
	// BackoffBase is the first transient-failure backoff, doubled on every further failure.
	BackoffBase time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// Pacing is the delay before every outbound call.
	Pacing time.Duration

	// RetryAfterFallback is the 429 wait used when Retry-After is absent or unparseable.
	RetryAfterFallback time.Duration

	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the policy used when a provider declares none.
func DefaultPolicy() Policy {
	return Policy{
		BackoffBase:        time.Second,
		MaxRetries:         3,
		Pacing:             time.Second,
		RetryAfterFallback: 60 * time.Second,
		Sleep:              SleepContext,
	}
}

// SleepContext waits for d, returning early with the context error if ctx is done first.
func SleepContext(ctx context.Context, d time.Duration) error {
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

// backoff returns the wait after the given number of consecutive failures.
func (p Policy) backoff(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	return p.BackoffBase << (failures - 1)
}

// validate checks the policy values.
func (p Policy) validate() error {
	var errs []error
	if p.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if p.Pacing < 0 {
		errs = append(errs, errors.New("pacing cannot be negative"))
	}
	if p.BackoffBase < 0 {
		errs = append(errs, errors.New("backoff base cannot be negative"))
	}
	if p.RetryAfterFallback < 0 {
		errs = append(errs, errors.New("retry-after fallback cannot be negative"))
	}
	return errors.Join(errs...)
}
