package retry

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Policy configures Do. Attempts are 1-based; MaxAttempts includes the first call.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Retryable decides whether err is worth another attempt. nil retries nothing.
	Retryable func(err error) bool

	// OnRetry is called before sleeping for the next attempt
	OnRetry func(attempt int, delay time.Duration, err error)

	// sleep is replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError is returned when every attempt failed with a retryable error
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return "retries exhausted: " + e.Last.Error()
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Delay returns the backoff before the given retry attempt (2, 3, ...): BaseDelay doubled per attempt, capped at MaxDelay
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 2; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, ctx is done, or attempts run out.
// A non-retryable error is returned as is; running out of attempts returns *ExhaustedError.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.Delay(attempt)
			if p.OnRetry != nil {
				p.OnRetry(attempt, delay, lastErr)
			}
			if err := sleep(ctx, delay); err != nil {
				return zero, goerr.Wrap(err, "retry canceled", goerr.V("attempt", attempt))
			}
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, goerr.Wrap(ctx.Err(), "retry canceled", goerr.V("attempt", attempt))
		}
		lastErr = err
	}

	return zero, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
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
