package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// SweepLocker provides mutual exclusion for a sweep across server instances.
// Acquire returns ok=false when another instance holds the lock.
type SweepLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// RedisSweepLocker implements SweepLocker with a Redis lease
type RedisSweepLocker struct {
	locker *redislock.Client
}

// NewRedisSweepLocker creates a locker on top of an existing Redis client
func NewRedisSweepLocker(client redis.UniversalClient) *RedisSweepLocker {
	return &RedisSweepLocker{locker: redislock.New(client)}
}

// Acquire obtains a lease on key for ttl
func (l *RedisSweepLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	lock, err := l.locker.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to obtain sweep lock %s: %w", key, err)
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}
	return release, true, nil
}
