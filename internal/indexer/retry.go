package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/creachadair/jrpc2"
)

const maxRetryDelay = 5 * time.Second

// withRetry calls fn until it succeeds, fails permanently, or maxRetries
// extra attempts are spent. The delay doubles up to maxRetryDelay.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || !retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = min(delay*2, maxRetryDelay)
	}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Request errors come back the same on every attempt.
	switch jrpc2.ErrorCode(err) {
	case jrpc2.InvalidRequest, jrpc2.MethodNotFound, jrpc2.InvalidParams:
		return false
	}
	return true
}
