// Package lease keeps background passes to one replica at a time.
package lease

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Locker runs fn only if the named lease can be taken right now.
// It reports false, without error, when another holder has it.
type Locker interface {
	TryRun(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

// LocalLocker is a process-local Locker for single-replica deployments
type LocalLocker struct {
	mu    sync.Mutex
	names map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{names: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) TryRun(ctx context.Context, name string, _ time.Duration, fn func(ctx context.Context) error) (bool, error) {
	l.mu.Lock()
	m, ok := l.names[name]
	if !ok {
		m = &sync.Mutex{}
		l.names[name] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return false, nil
	}
	defer m.Unlock()
	return true, fn(ctx)
}

// RedisLocker takes leases with the redlock algorithm on a single Redis
type RedisLocker struct {
	rs     *redsync.Redsync
	prefix string
}

func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{rs: redsync.New(goredis.NewPool(client)), prefix: prefix}
}

func (l *RedisLocker) TryRun(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	key := l.prefix + name
	mutex := l.rs.NewMutex(key, redsync.WithExpiry(ttl), redsync.WithTries(1))

	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			log.Debug().Str("lease", key).Msg("lease held elsewhere, skipping")
			return false, nil
		}
		return false, fmt.Errorf("failed to take lease %s: %w", key, err)
	}
	defer func() {
		// Use a fresh context so a cancelled pass still releases the lease.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); err != nil || !ok {
			log.Warn().Err(err).Str("lease", key).Msg("lease expired before release")
		}
	}()

	return true, fn(ctx)
}

func isContention(err error) bool {
	if errors.Is(err, redsync.ErrFailed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock already taken") || strings.Contains(msg, "failed to acquire lock")
}
