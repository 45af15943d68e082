package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// unlessCanceled retries every error except shutdown.
func unlessCanceled(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// JobPolicy retries a unit of background work (one check, one correlation,
// one notification) with capped exponential backoff.
func JobPolicy(name string, attempts int, base, max time.Duration, log *zap.Logger) Policy {
	if attempts <= 0 {
		attempts = 3
	}
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	if max <= 0 {
		max = 2 * time.Second
	}
	return Policy{
		Name:      name,
		Attempts:  attempts,
		Backoff:   ExpoJitter{Base: base, Max: max, Jitter: 0.2},
		Retryable: unlessCanceled,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("job attempt failed", zap.String("job", name), zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}

// PublishPolicy relays outbox rows to Kafka. Brokers can be away for a while,
// so it keeps trying for roughly a minute before the row is left for the next
// tick.
func PublishPolicy(log *zap.Logger) Policy {
	return Policy{
		Attempts:  6,
		Backoff:   ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: unlessCanceled,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("outbox publish retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox publish retries exhausted", zap.Error(err))
			}
		},
	}
}
