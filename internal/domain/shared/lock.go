package shared

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotObtained is returned by a DistributedLocker when another process
// holds the lock
var ErrLockNotObtained = errors.New("lock not obtained")

// Lock is a held distributed lock
type Lock interface {
	Release(ctx context.Context) error
}

// DistributedLocker obtains short-lived locks shared between replicas
type DistributedLocker interface {
	// Obtain tries once to take the lock for ttl. It returns
	// ErrLockNotObtained without waiting if the lock is held.
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
