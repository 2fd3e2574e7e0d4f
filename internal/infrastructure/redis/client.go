package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// ConnectTimeout bounds how long NewClient keeps retrying the first ping.
const ConnectTimeout = 5 * time.Second

// NewClient creates a Redis client and waits up to ConnectTimeout for it to
// answer a ping.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	return NewClientWithTimeout(ctx, redisURL, ConnectTimeout)
}

// NewClientWithTimeout is NewClient with a caller supplied connect budget.
// The server is pinged with exponential backoff until it answers, the budget
// runs out or ctx is done.
func NewClientWithTimeout(ctx context.Context, redisURL string, connectTimeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if connectTimeout <= 0 {
		connectTimeout = ConnectTimeout
	}

	client := redis.NewClient(opts)

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(50*time.Millisecond),
		backoff.WithMaxInterval(time.Second),
		backoff.WithMaxElapsedTime(connectTimeout),
	)
	attempts := 0
	ping := func() error {
		attempts++
		return client.Ping(ctx).Err()
	}
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s after %d attempts: %w", opts.Addr, attempts, err)
	}

	return client, nil
}
