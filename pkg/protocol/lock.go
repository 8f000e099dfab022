package protocol

import (
	"context"
	"time"
)

// ExecutionLocker serializes step processing per execution. Acquire returns
// acquired=false when another worker holds the lock; the caller should drop
// the step rather than wait, since the holder will publish the follow-up.
type ExecutionLocker interface {
	Acquire(ctx context.Context, executionID string, ttl time.Duration) (release func(), acquired bool, err error)
}
