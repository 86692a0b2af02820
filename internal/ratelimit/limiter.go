// Package ratelimit enforces the global per-hour send ceiling against a
// counter store shared by every worker process.
package ratelimit

import (
	"context"

	"go.uber.org/zap"

	"mailflow/internal/metrics"
)

// CounterStore atomically increments the named counter and returns the new
// value. Implementations must guarantee increment-and-read as one operation;
// a read-then-write store would reintroduce the double-reservation race.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// Decision is the result of a reservation attempt.
type Decision struct {
	Allowed bool
	Count   int64
}

type Limiter struct {
	store CounterStore
	max   int64
	log   *zap.Logger
}

func New(store CounterStore, max int64, log *zap.Logger) *Limiter {
	return &Limiter{store: store, max: max, log: log}
}

// Reserve claims one slot in the given hour bucket: increment first, then
// compare. A denied attempt leaves its increment in place; over-counting
// denied attempts is acceptable, under-counting is not.
//
// When the counter store is unreachable the limiter fails OPEN: the send is
// allowed and the degradation is logged. This asymmetry versus the other
// admission checks is intentional, do not change it to fail-closed without
// confirming with the product owners.
func (l *Limiter) Reserve(ctx context.Context, bucketKey string) Decision {
	count, err := l.store.Incr(ctx, bucketKey)
	if err != nil {
		metrics.LimiterFailOpen.Inc()
		l.log.Warn("rate limiter store unavailable, failing open",
			zap.String("bucket", bucketKey),
			zap.Bool("fail_open", true),
			zap.Error(err),
		)
		return Decision{Allowed: true, Count: -1}
	}

	if count > l.max {
		metrics.RateDenied.Inc()
		return Decision{Allowed: false, Count: count}
	}
	return Decision{Allowed: true, Count: count}
}
