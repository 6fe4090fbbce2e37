package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// withRetry runs fn with exponential backoff, up to maxRetries retries after the
// first attempt. Context cancellation is never retried.
func withRetry[T any](ctx context.Context, logger *zap.Logger, op string, maxRetries int, baseDelay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseDelay
	policy.MaxInterval = baseDelay * 32

	notify := func(err error, delay time.Duration) {
		logger.Warn(op+" failed, retrying", zap.Error(err), zap.Duration("backoff", delay))
	}

	operation := func() (T, error) {
		value, err := fn(ctx)
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(maxRetries)+1),
		backoff.WithNotify(notify),
	)
}
