package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/copytrade-ledger/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastDialRetry(t *testing.T) {
	prev := dialRetry
	dialRetry = &retry.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
	t.Cleanup(func() { dialRetry = prev })
}

func TestWaitReachable_RecoversAfterFailures(t *testing.T) {
	fastDialRetry(t)

	calls := 0
	err := waitReachable(testContext(t), "redis", time.Second, func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitReachable_GivesUp(t *testing.T) {
	fastDialRetry(t)

	refused := errors.New("connection refused")
	err := waitReachable(testContext(t), "postgres", time.Second, func(ctx context.Context) error {
		return refused
	})

	require.ErrorIs(t, err, refused)
	assert.Contains(t, err.Error(), "postgres unreachable")
}
