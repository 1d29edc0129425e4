package cache

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/ports"
)

// BreakerCache guards a remote cache with a circuit breaker. While the
// circuit is open every call fails fast with gobreaker.ErrOpenState.
type BreakerCache struct {
	next ports.CacheRepository
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerCache wraps next. The circuit opens after more than three
// consecutive failures and half-opens after timeout.
func NewBreakerCache(next ports.CacheRepository, name string, timeout time.Duration, log *logger.Logger) *BreakerCache {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("Circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &BreakerCache{next: next, cb: cb}
}

var _ ports.CacheRepository = (*BreakerCache)(nil)

// State reports the current circuit state
func (b *BreakerCache) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Set(ctx, key, value, expiration)
	})
	return err
}

func (b *BreakerCache) Exists(ctx context.Context, key string) (bool, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Exists(ctx, key)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (b *BreakerCache) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Increment(ctx, key, window)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

func (b *BreakerCache) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Delete(ctx, key)
	})
	return err
}

// Ping bypasses the breaker so health checks see the real backend state
func (b *BreakerCache) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}
