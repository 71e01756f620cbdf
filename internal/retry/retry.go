// Package retry drives exponential-backoff retries of rate-limited
// operations. The retried unit of work is a plain closure, so the same
// driver serves both single-page HTTP calls and whole logical operations.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agilewatch/agilewatch/internal/apperr"
)

// Policy bounds the backoff schedule. The delay starts at BaseDelay and is
// multiplied by Multiplier after each rate-limited attempt
// (100ms -> 500ms -> 2500ms -> ... with the defaults).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  int
}

// DefaultPolicy matches the upstream rate limiter's observed recovery
// behavior.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 10,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  5,
	}
}

// sleep waits for d or until ctx is done. Swapped out by tests to record the
// backoff schedule.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithBackoff invokes op until it succeeds, fails with a non-retryable
// error, or exhausts p.MaxAttempts. Only rate-limit errors are retried; all
// other errors propagate immediately. No delay follows the final attempt.
func WithBackoff[T any](ctx context.Context, log *zap.Logger, p Policy, op func() (T, error)) (T, error) {
	var zero T
	delay := p.BaseDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		if !apperr.IsRateLimited(err) || attempt == p.MaxAttempts {
			return zero, err
		}

		log.Warn("rate limited, retrying",
			zap.Duration("delay", delay),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
		)
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay *= time.Duration(p.Multiplier)
	}

	return zero, apperr.RateLimited()
}
