package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/copytrade-ledger/internal/logging"
	"github.com/copytrade-ledger/internal/retry"
)

// dialRetry covers databases that start alongside the ledger and accept
// connections a few seconds late.
var dialRetry = &retry.RetryConfig{
	MaxAttempts:  4,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     4 * time.Second,
	Multiplier:   2,
}

// waitReachable pings a freshly opened backend until it answers. Each attempt
// gets its own timeout.
func waitReachable(ctx context.Context, backend string, timeout time.Duration, ping func(context.Context) error) error {
	logger := logging.FromContext(ctx).WithField("backend", backend)

	err := retry.Do(ctx, dialRetry, func(ctx context.Context, attempt int) error {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ping(pingCtx)
	})
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", backend, err)
	}

	logger.Debug("Backend reachable")
	return nil
}
