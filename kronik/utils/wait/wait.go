package wait

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a condition never held within its budget.
var ErrTimeout = errors.New("timed out waiting for condition")

// Until calls cond every interval until it returns true, timeout elapses or
// ctx is done. The condition is checked once immediately, and once more at the deadline.
func Until(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) bool) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		if cond(ctx) {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}
		if err := Sleep(ctx, min(interval, remaining)); err != nil {
			return err
		}
	}
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
