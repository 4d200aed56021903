package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// WithTimeout runs fn under a deadline. Once the deadline passes the result
// wraps apperrors.ErrTimeout and context.DeadlineExceeded, even if fn has
// not returned yet; fn keeps its cancelled context until it notices.
// A zero timeout calls fn directly.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	expired := fmt.Errorf("%s exceeded %v: %w: %w", name, timeout, apperrors.ErrTimeout, context.DeadlineExceeded)
	tctx, cancel := context.WithTimeoutCause(ctx, timeout, expired)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(tctx) }()
	select {
	case err := <-result:
		if err != nil && context.Cause(tctx) == expired {
			return expired
		}
		return err
	case <-tctx.Done():
		return context.Cause(tctx)
	}
}
