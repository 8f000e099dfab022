// Package lock provides per-execution locking so concurrent step requests
// for the same execution cannot double-process a node.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLocker implements protocol.ExecutionLocker with SET NX EX. The lock
// value is a per-acquisition token so a release after expiry cannot drop
// someone else's lock.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(ctx context.Context, redisURL string) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLocker{client: client}, nil
}

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

func (l *RedisLocker) Acquire(ctx context.Context, executionID string, ttl time.Duration) (func(), bool, error) {
	key := "cadence:execution-lock:" + executionID
	token := uuid.New().String()

	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire execution lock: %w", err)
	}

	if !acquired {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		_ = l.client.Eval(releaseCtx, releaseScript, []string{key}, token).Err()
	}

	return release, true, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
