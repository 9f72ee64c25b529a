// Package lock provides short-lived leases on spot ids backed by Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/config"
)

// KeyPrefix namespaces spot leases in Redis.
const KeyPrefix = "spot-lease:"

// ErrNotObtained is returned when another holder kept the lease for the whole wait.
var ErrNotObtained = errors.New("lease not obtained")

// Lease is a held lock. Release is safe to call once the lease has expired.
type Lease interface {
	Release(ctx context.Context) error
}

// SpotKey returns the Redis key guarding spotID.
func SpotKey(spotID string) string {
	return KeyPrefix + spotID
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisLocker hands out leases with a fixed TTL. Acquire waits for a busy
// lease by polling until Wait elapses.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	logger *zap.Logger
}

func NewRedisLocker(client redis.Scripter, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(client),
		ttl:    ttl,
		wait:   ttl,
		poll:   25 * time.Millisecond,
		logger: logger,
	}
}

// WithWait sets how long Acquire keeps retrying a held lease.
func (l *RedisLocker) WithWait(d time.Duration) *RedisLocker {
	l.wait = d
	return l
}

// Acquire obtains the lease for spotID.
func (l *RedisLocker) Acquire(ctx context.Context, spotID string) (Lease, error) {
	key := SpotKey(spotID)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	held, err := l.client.Obtain(waitCtx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.poll),
	})
	if errors.Is(err, redislock.ErrNotObtained) || (err != nil && waitCtx.Err() != nil && ctx.Err() == nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lease %s: %w", key, err)
	}

	l.logger.Debug("Lease obtained", zap.String("key", key), zap.Duration("ttl", l.ttl))
	return &lease{lock: held, key: key, logger: l.logger}, nil
}

type lease struct {
	lock   *redislock.Lock
	key    string
	logger *zap.Logger
}

func (l *lease) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		l.logger.Warn("Lease expired before release", zap.String("key", l.key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}
	return nil
}
