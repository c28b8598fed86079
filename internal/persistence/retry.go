package persistence

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// retryConnect calls connect until it succeeds, sleeping delay between
// attempts. Only cancellation of ctx stops the loop.
func retryConnect(ctx context.Context, name string, delay time.Duration, logger *zap.Logger, connect func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := connect(ctx)
		if err == nil {
			return nil
		}
		logger.Warn("database connection failed; retrying",
			zap.String("store", name),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
