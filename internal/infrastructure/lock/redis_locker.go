package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"go.uber.org/zap"
)

// RedisConfig holds the redis lock settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// RedisLocker holds the sync lock in redis so replicas never sync concurrently
type RedisLocker struct {
	client *redis.Client
	locker *redislock.Client
	config RedisConfig
	logger *zap.Logger
}

// NewRedisLocker connects to redis and verifies the connection
func NewRedisLocker(ctx context.Context, config RedisConfig, logger *zap.Logger) (*RedisLocker, error) {
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	logger.Info("Connected to redis for sync locking", zap.String("addr", config.Addr))

	return &RedisLocker{
		client: rdb,
		locker: redislock.New(rdb),
		config: config,
		logger: logger,
	}, nil
}

// Acquire obtains the lock without waiting. While held, the lease is extended
// every TTL/3, so it only expires after TTL if this process dies.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (port.Unlock, error) {
	lockKey := l.config.Prefix + key

	obtained, err := l.locker.Obtain(ctx, lockKey, l.config.TTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		l.logger.Info("Sync lock held elsewhere", zap.String("key", lockKey))
		return nil, port.ErrLockNotObtained
	}
	if err != nil {
		l.logger.Error("Failed to obtain sync lock", zap.String("key", lockKey), zap.Error(err))
		return nil, fmt.Errorf("failed to obtain lock %s: %w", lockKey, err)
	}

	stopRefresh := keepAlive(l.config.TTL/3, func(ctx context.Context) error {
		return obtained.Refresh(ctx, l.config.TTL, nil)
	}, func(err error) {
		l.logger.Warn("Failed to refresh sync lock", zap.String("key", lockKey), zap.Error(err))
	})

	return func(ctx context.Context) error {
		stopRefresh()
		if err := obtained.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("failed to release lock %s: %w", lockKey, err)
		}
		return nil
	}, nil
}

// keepAlive calls refresh every interval until the returned stop is called.
// It gives up once the lease is lost.
func keepAlive(interval time.Duration, refresh func(ctx context.Context) error, onErr func(error)) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := refresh(ctx)
				if err == nil || ctx.Err() != nil {
					continue
				}
				onErr(err)
				if errors.Is(err, redislock.ErrNotObtained) {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// Close closes the redis connection
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

var _ port.SyncLocker = (*RedisLocker)(nil)

// Health pings the redis server backing the lock
func (l *RedisLocker) Health(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
