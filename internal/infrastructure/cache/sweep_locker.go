package cache

import (
	"context"
	"errors"
	"time"

	"github.com/atelier-erp/backend/internal/domain/shared"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisSweepLocker hands out redislock locks so a periodic job runs on one
// replica at a time
type RedisSweepLocker struct {
	client *redislock.Client
}

// NewRedisSweepLocker creates a locker on an existing Redis client
func NewRedisSweepLocker(client redis.UniversalClient) *RedisSweepLocker {
	return &RedisSweepLocker{client: redislock.New(client)}
}

// Obtain tries once to take the lock. A lock held elsewhere is reported as
// shared.ErrLockNotObtained.
func (l *RedisSweepLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, shared.ErrLockNotObtained
		}
		return nil, err
	}
	return &redisLock{lock: lock}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

// Release frees the lock. A lock that already expired is not an error.
func (l *redisLock) Release(ctx context.Context) error {
	if err := l.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return err
	}
	return nil
}

var _ shared.DistributedLocker = (*RedisSweepLocker)(nil)
