package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
)

// WithTimeout bounds fn to limit. When the limit expires first the returned
// error matches both apperrors.ErrTimeout and context.DeadlineExceeded; fn
// keeps running in the background until it notices its context is done. A
// non-positive limit calls fn directly.
func WithTimeout(ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(bounded) }()

	select {
	case err := <-result:
		return err
	case <-bounded.Done():
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s abandoned: %w", op, err)
	}
	return fmt.Errorf("%s: %w after %v: %w", op, apperrors.ErrTimeout, limit, context.DeadlineExceeded)
}
