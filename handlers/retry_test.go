package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kevinaaaquil/circulation/circulation"
)

func TestRetryOnlyStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	flaky := circulation.StoreFailure(errors.New("connection reset"))

	calls := 0
	err := RetryWithExponentialBackoff(ctx, func(context.Context) error {
		calls++
		if calls < 3 {
			return flaky
		}
		return nil
	}, WithBaseDelay(time.Millisecond))
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryWithExponentialBackoff(ctx, func(context.Context) error {
		calls++
		return circulation.Unavailable(circulation.ErrBookUnavailable, "b1")
	}, WithBaseDelay(time.Millisecond))
	assert.ErrorIs(t, err, circulation.ErrBookUnavailable)
	assert.Equal(t, 1, calls, "business errors are terminal")

	calls = 0
	err = RetryWithExponentialBackoff(ctx, func(context.Context) error {
		calls++
		return flaky
	}, WithMaxAttempts(2), WithBaseDelay(0))
	assert.True(t, circulation.IsRetryable(err))
	assert.Equal(t, 2, calls)
}

func TestRetryOptionsValidate(t *testing.T) {
	noop := func(context.Context) error { return nil }
	ctx := context.Background()
	assert.ErrorIs(t, RetryWithExponentialBackoff(ctx, noop, WithMaxAttempts(0)), ErrInvalidMaxAttempts)
	assert.ErrorIs(t, RetryWithExponentialBackoff(ctx, noop, WithBaseDelay(-time.Second)), ErrNegativeBaseDelay)
	assert.ErrorIs(t, RetryWithExponentialBackoff(ctx, noop, WithJitterFactor(2)), ErrInvalidJitterFactor)
}
