package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is the in-process locker used in tests and single-worker
// deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, executionID string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()

	if expiry, exists := l.held[executionID]; exists && expiry.After(now) {
		return nil, false, nil
	}

	l.held[executionID] = now.Add(ttl)

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.held, executionID)
	}

	return release, true, nil
}
