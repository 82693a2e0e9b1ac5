package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed holder can block other replicas.
const DefaultTTL = 30 * time.Minute

// KeyPrefix namespaces lock keys in a shared Redis.
const KeyPrefix = "kobosync:lock:"

// RedisOptions configures a Redis lock.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Wait     time.Duration
}

// Redis is a Locker shared by every replica connected to the same Redis.
type Redis struct {
	rdb    *redis.Client
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisFromClient(rdb, opts.TTL, opts.Wait), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client, ttl, wait time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Redis{
		rdb:    rdb,
		locker: redislock.New(rdb),
		ttl:    ttl,
		wait:   wait,
	}
}

// Acquire obtains the named lock, polling until the wait budget expires.
func (r *Redis) Acquire(ctx context.Context, name string) (Release, error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(250*time.Millisecond), retries(r.wait, 250*time.Millisecond)),
	}

	l, err := r.locker.Obtain(ctx, KeyPrefix+name, r.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLocked
	} else if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", name, err)
	}

	return func(ctx context.Context) error {
		err := l.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// Expired under us; nothing left to release.
			return nil
		}
		return err
	}, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func retries(wait, step time.Duration) int {
	n := int(wait / step)
	if n < 1 {
		return 1
	}
	return n
}
