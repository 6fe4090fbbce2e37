package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	value, err := withRetry(context.Background(), nil, "op", 3, time.Millisecond, func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("temporary")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryGivesUp(t *testing.T) {
	attempts := 0
	_, err := withRetry(context.Background(), nil, "op", 2, time.Millisecond, func(context.Context) (int, error) {
		attempts++
		return 0, errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	_, err := withRetry(ctx, nil, "op", 5, time.Millisecond, func(ctx context.Context) (int, error) {
		attempts++
		return 0, ctx.Err()
	})
	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 1, "no retries after cancel")
}
