package ports

import (
	"context"
	"time"
)

// SyncLock prevents two sync passes from working on the same integration at once
type SyncLock interface {
	// Acquire returns false when the key is already held
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
