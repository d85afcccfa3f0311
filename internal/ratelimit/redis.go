package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisLimiter is a fixed-window counter in Redis, shared across process
// instances that use the same API credential. Each window has one key
// (provider + window start); the first INCR of a window sets its expiry.
type RedisLimiter struct {
	client  *redis.Client
	prefix  string
	limit   int
	window  time.Duration
	retries int
}

// RedisConfig holds connection settings for the shared counter store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis creates a Redis-backed limiter allowing perWindow requests
// per window across all processes, retrying a bounded number of times
// before giving up with ErrLimitExceeded.
func NewRedis(cfg RedisConfig, perWindow int, window time.Duration, retries int) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ratelimit:"
	}
	if perWindow <= 0 {
		perWindow = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	if retries < 0 {
		retries = 0
	}

	return &RedisLimiter{
		client:  client,
		prefix:  prefix,
		limit:   perWindow,
		window:  window,
		retries: retries,
	}, nil
}

func (l *RedisLimiter) key(provider string, now time.Time) string {
	windowStart := now.Truncate(l.window).Unix()
	return fmt.Sprintf("%s%s:%d", l.prefix, provider, windowStart)
}

// Acquire increments the current window's counter. Over the limit it
// backs off toward the window boundary and retries; after the configured
// retries it fails with ErrLimitExceeded so callers can abort instead of
// hanging.
func (l *RedisLimiter) Acquire(ctx context.Context, provider string) error {
	for attempt := 0; attempt <= l.retries; attempt++ {
		now := time.Now()
		key := l.key(provider, now)

		pipe := l.client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.window+time.Second)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("rate limit counter update failed: %w", err)
		}

		if incr.Val() <= int64(l.limit) {
			return nil
		}

		// Over budget for this window. Wait until the window rolls over,
		// capped so a single Acquire never sleeps longer than one window.
		remaining := now.Truncate(l.window).Add(l.window).Sub(now)
		wait := remaining + time.Duration(attempt)*100*time.Millisecond
		if wait > l.window {
			wait = l.window
		}

		logrus.WithFields(logrus.Fields{
			"provider": provider,
			"attempt":  attempt + 1,
			"wait":     wait.String(),
		}).Debug("Rate limit window exhausted, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("%w: provider %s after %d retries", ErrLimitExceeded, provider, l.retries)
}

// Close closes the Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

var _ Limiter = (*RedisLimiter)(nil)
