package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/storyweaver/pkg/utils/retry"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func newPolicy(maxAttempts int, slept *[]time.Duration) retry.Policy {
	p := retry.Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    250 * time.Millisecond,
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
	}
	return retry.WithSleepForTest(p, func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return ctx.Err()
	})
}

func TestDo(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		var slept []time.Duration
		calls := 0
		got, err := retry.Do(t.Context(), newPolicy(4, &slept), func(ctx context.Context, attempt int) (string, error) {
			calls++
			gt.Value(t, attempt).Equal(calls)
			if calls < 3 {
				return "", errTransient
			}
			return "ok", nil
		})
		gt.NoError(t, err)
		gt.Value(t, got).Equal("ok")
		gt.Value(t, calls).Equal(3)
		gt.Array(t, slept).Equal([]time.Duration{100 * time.Millisecond, 200 * time.Millisecond})
	})

	t.Run("does not retry non-retryable error", func(t *testing.T) {
		var slept []time.Duration
		calls := 0
		_, err := retry.Do(t.Context(), newPolicy(5, &slept), func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, errFatal
		})
		gt.Error(t, err).Is(errFatal)
		gt.Value(t, calls).Equal(1)
		gt.Array(t, slept).Length(0)
	})

	t.Run("returns exhausted error after max attempts", func(t *testing.T) {
		var slept []time.Duration
		calls := 0
		_, err := retry.Do(t.Context(), newPolicy(3, &slept), func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, errTransient
		})
		gt.Value(t, calls).Equal(3)

		var exhausted *retry.ExhaustedError
		gt.Bool(t, errors.As(err, &exhausted)).True()
		gt.Value(t, exhausted.Attempts).Equal(3)
		gt.Error(t, err).Is(errTransient)
	})

	t.Run("stops when context is canceled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		p := retry.Policy{
			MaxAttempts: 5,
			BaseDelay:   time.Hour,
			Retryable:   func(error) bool { return true },
		}
		calls := 0
		_, err := retry.Do(ctx, p, func(ctx context.Context, attempt int) (int, error) {
			calls++
			cancel()
			return 0, errTransient
		})
		gt.Error(t, err).Is(context.Canceled)
		gt.Value(t, calls).Equal(1)
	})
}

func TestPolicyDelay(t *testing.T) {
	p := retry.Policy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	gt.Value(t, p.Delay(1)).Equal(time.Duration(0))
	gt.Value(t, p.Delay(2)).Equal(time.Second)
	gt.Value(t, p.Delay(3)).Equal(2 * time.Second)
	gt.Value(t, p.Delay(4)).Equal(4 * time.Second)
	gt.Value(t, p.Delay(5)).Equal(5 * time.Second)
	gt.Value(t, p.Delay(30)).Equal(5 * time.Second)
}
