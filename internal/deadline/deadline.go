// Package deadline bounds calls to remote providers.
package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches any error produced by a call that ran out of time.
var ErrTimeout = errors.New("provider call timed out")

// Call runs fn with a context limited to d. A non-positive d means no limit.
// When the limit expires the returned error matches both ErrTimeout and the
// error fn returned.
func Call[T any](ctx context.Context, d time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(tctx)
	if err != nil {
		return v, Check(tctx, ctx, op, d, err)
	}
	return v, nil
}

// Check tags err with ErrTimeout when tctx hit its deadline while the parent
// ctx is still live. Cancellation by the caller is passed through unchanged.
func Check(tctx, ctx context.Context, op string, d time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s after %s: %w", ErrTimeout, op, d, err)
	}
	return err
}
