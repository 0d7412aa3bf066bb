package retry

import (
	"context"
	"time"
)

// WithSleepForTest replaces the sleep function of p
func WithSleepForTest(p Policy, sleep func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = sleep
	return p
}
