package lock

import (
	"context"
	"sync"
	"time"

	"archie-core-shopee-layer/internal/ports"
)

// MemorySyncLock implements SyncLock in process.
// Used when no Redis address is configured and in tests.
type MemorySyncLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewMemorySyncLock creates an in-memory lock
func NewMemorySyncLock() *MemorySyncLock {
	return &MemorySyncLock{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// Acquire takes the key unless it is held and not yet expired
func (l *MemorySyncLock) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if expiresAt, ok := l.held[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

// Release frees the key
func (l *MemorySyncLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

var _ ports.SyncLock = (*MemorySyncLock)(nil)
