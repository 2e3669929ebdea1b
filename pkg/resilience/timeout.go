package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout runs fn with a context cancelled after timeout. A zero or
// negative timeout runs fn with ctx unchanged. When the deadline is what
// stopped fn, the returned error wraps context.DeadlineExceeded and names
// the limit.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(timeoutCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: parent context cancelled: %w", name, err)
	}
	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w (limit: %v): %v", name, context.DeadlineExceeded, timeout, err)
	}
	return err
}
