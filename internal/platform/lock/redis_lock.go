// Package lock provides a Redis-backed mutual exclusion for sync runs.
// Runs share the staging tables, so two runs must never overlap.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another owner holds the lock.
var ErrLocked = errors.New("lock is held by another run")

// releaseScript deletes the key only if it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock implements a single-holder lock with expiry.
type RedisLock struct {
	client *redis.Client
	prefix string
}

// NewRedisLock creates a new RedisLock instance.
func NewRedisLock(client *redis.Client, prefix string) *RedisLock {
	if prefix == "" {
		prefix = "lock"
	}
	return &RedisLock{
		client: client,
		prefix: prefix,
	}
}

// lockKey returns the Redis key for a lock.
func (l *RedisLock) lockKey(name string) string {
	return fmt.Sprintf("%s:%s", l.prefix, name)
}

// Acquire takes the lock for owner. The lock expires after ttl so a crashed
// run cannot block later runs forever.
func (l *RedisLock) Acquire(ctx context.Context, name, owner string, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.lockKey(name), owner, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire %s: %w", name, err)
	}
	if !ok {
		holder, _ := l.client.Get(ctx, l.lockKey(name)).Result()
		return fmt.Errorf("%w: %s held by %q", ErrLocked, name, holder)
	}
	return nil
}

// Release drops the lock if owner still holds it. Releasing a lock that expired
// or was taken over is not an error.
func (l *RedisLock) Release(ctx context.Context, name, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.lockKey(name)}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}
