// Package lock implements a redis-backed lock for work that must run on at
// most one replica at a time. It is not used on the money path: ledger
// correctness comes from the store's transaction isolation.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrLockFailed = errors.New("failed to acquire lock")

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // holder identity, verified on release
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock attempts SET key value NX EX once. The expiration releases the
// lock if the holder dies. Without a redis client the lock degrades to a
// no-op, which is safe when a single replica runs the job.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		return true, nil
	}
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock up to maxRetries times before giving up.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock deletes the key only if this holder still owns it. The check and
// delete run in one Lua script so an expired lock taken over by another
// holder is never deleted by mistake.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewOutboxLock guards outbox publishing so only one replica drains a batch.
func NewOutboxLock(client *redis.Client, holder string) *DistributedLock {
	return NewDistributedLock(client, "outbox:lock:sender", holder, 30*time.Second)
}
