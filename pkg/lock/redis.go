package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// deletes the key only while it still holds the caller's token
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

type redisLocker struct {
	client   *redis.Client
	unlock   *redis.Script
	ttl      time.Duration
	interval time.Duration
}

// NewRedisLocker serializes callers sharing the redis instance. A holder that
// dies releases the key after ttl.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{
		client:   client,
		unlock:   redis.NewScript(unlockLua),
		ttl:      ttl,
		interval: 20 * time.Millisecond,
	}
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	lk := "lock:" + key

	for {
		ok, err := l.client.SetNX(ctx, lk, token, l.ttl).Result()
		if ctxErr := ctx.Err(); ctxErr != nil {
			// the set may have landed even though the caller gave up
			l.release(lk, token)
			return nil, fmt.Errorf("redis: acquire lock %s: %w", key, ctxErr)
		}
		if err != nil {
			return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis: acquire lock %s: %w", key, ctx.Err())
		case <-time.After(l.interval):
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		l.release(lk, token)
	}, nil
}

func (l *redisLocker) release(lk, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = l.unlock.Run(ctx, l.client, []string{lk}, token).Err()
}
