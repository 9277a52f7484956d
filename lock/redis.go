/*
Package lock provides a Redis-backed generic.Locker for multi-node deployments.

PURPOSE:
  The in-process KeyedMutex only serializes submissions inside one server.
  When several servers share a database, RedisLocker serializes them across
  processes so the common path never reaches a ledger head conflict.

SEMANTICS:
  - Lock is SET key token NX PX ttl, retried every PollInterval until the
    context is done.
  - Unlock deletes the key only if it still holds our token, so a lock that
    expired and was taken by someone else is never released by us.
  - The lock is an optimization. Correctness still rests on the ledger head
    check inside the store transaction.

SEE ALSO:
  - generic/lock.go: Locker interface and KeyedMutex
*/
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/warp/benefit-engine/generic"
)

const (
	DefaultTTL          = 10 * time.Second
	DefaultPollInterval = 25 * time.Millisecond
	DefaultPrefix       = "lock:"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements generic.Locker on a Redis server.
type RedisLocker struct {
	client       redis.UniversalClient
	ttl          time.Duration
	pollInterval time.Duration
	prefix       string
}

var _ generic.Locker = (*RedisLocker)(nil)

type Option func(*RedisLocker)

// WithTTL bounds how long a crashed holder can block others.
func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) { l.ttl = ttl }
}

func WithPollInterval(d time.Duration) Option {
	return func(l *RedisLocker) { l.pollInterval = d }
}

func WithPrefix(prefix string) Option {
	return func(l *RedisLocker) { l.prefix = prefix }
}

func NewRedisLocker(client redis.UniversalClient, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client:       client,
		ttl:          DefaultTTL,
		pollInterval: DefaultPollInterval,
		prefix:       DefaultPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewClient creates a Redis client and checks connectivity.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("lock: ping redis: %w", err)
	}
	return client, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() { l.release(redisKey, token) })
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", generic.ErrLockNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// release runs on its own context; the caller's may already be done.
func (l *RedisLocker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = unlockScript.Run(ctx, l.client, []string{redisKey}, token).Err()
}
