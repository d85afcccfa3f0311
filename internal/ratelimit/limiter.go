package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrLimitExceeded is returned when the pacing budget for a provider is
// exhausted and the bounded wait ran out. Callers may retry later.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Limiter paces outbound requests per provider key. Acquire blocks until
// a slot is free or fails with ErrLimitExceeded; it never blocks forever.
type Limiter interface {
	Acquire(ctx context.Context, provider string) error
}

// LocalLimiter paces requests within a single process. It is the
// fallback for deployments without a shared Redis counter; instances
// sharing one API credential should use the Redis limiter instead.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perMin   int
	maxWait  time.Duration
}

// NewLocal creates a process-local limiter allowing perMinute requests
// per provider key, waiting at most maxWait for a slot.
func NewLocal(perMinute int, maxWait time.Duration) *LocalLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		perMin:   perMinute,
		maxWait:  maxWait,
	}
}

func (l *LocalLimiter) limiter(provider string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[provider]
	if !ok {
		// burst of 1 so a fresh key cannot fire a request storm
		lim = rate.NewLimiter(rate.Limit(float64(l.perMin)/60.0), 1)
		l.limiters[provider] = lim
	}
	return lim
}

// Acquire waits for a slot, bounded by maxWait and the caller's context.
func (l *LocalLimiter) Acquire(ctx context.Context, provider string) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.limiter(provider).Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: provider %s waited %v", ErrLimitExceeded, provider, l.maxWait)
	}
	return nil
}

var _ Limiter = (*LocalLimiter)(nil)
