package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	redisInitialBackoff = 200 * time.Millisecond
	redisMaxBackoff     = 5 * time.Second
	redisPingTimeout    = 5 * time.Second
)

// RedisOptions configures the shared Redis client.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	Retries  uint64
}

// NewRedisClient connects to Redis, retrying the initial ping with
// exponential backoff.
func NewRedisClient(ctx context.Context, opts RedisOptions, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	operation := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		return client.Ping(pingCtx).Err()
	}

	strategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(redisInitialBackoff),
				backoff.WithMaxInterval(redisMaxBackoff),
			),
			opts.Retries,
		),
		ctx,
	)

	err := backoff.RetryNotify(operation, strategy, func(err error, d time.Duration) {
		log.Warn("redis not reachable, retrying",
			zap.String("address", opts.Address),
			zap.Duration("backoff", d),
			zap.Error(err))
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
