package cmd

import (
	"context"

	"github.com/cadencehq/cadence/pkg/lock"
	"github.com/cadencehq/cadence/pkg/protocol"
)

// NewLocker returns the redis-backed execution locker when a redis URL is
// configured, and the in-process locker otherwise. Single-worker
// deployments are safe with the in-process locker; anything horizontally
// scaled needs redis.
func NewLocker(ctx context.Context, redisURL string) (protocol.ExecutionLocker, error) {
	if redisURL == "" {
		return lock.NewMemoryLocker(), nil
	}

	return lock.NewRedisLocker(ctx, redisURL)
}
