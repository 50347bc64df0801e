package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"archie-core-shopee-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "shopee:sync:lock:"

// releaseScript deletes the key only while it still holds our token,
// so an expired lock re-acquired by another instance is never released by us
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSyncLock implements SyncLock using Redis SETNX with a TTL.
// It is suitable for deployments where several instances serve sync requests.
type RedisSyncLock struct {
	client    *redis.Client
	keyPrefix string

	mu     sync.Mutex
	tokens map[string]string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisSyncLock creates a Redis lock and verifies the connection
func NewRedisSyncLock(cfg RedisConfig) (*RedisSyncLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisSyncLockWithClient(client, ""), nil
}

// NewRedisSyncLockWithClient creates a lock with an existing Redis client
func NewRedisSyncLockWithClient(client *redis.Client, keyPrefix string) *RedisSyncLock {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisSyncLock{
		client:    client,
		keyPrefix: keyPrefix,
		tokens:    make(map[string]string),
	}
}

// Acquire sets the lock key if it does not exist
func (l *RedisSyncLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[key] = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release deletes the lock key if this instance still owns it
func (l *RedisSyncLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisSyncLock) Close() error {
	return l.client.Close()
}

var _ ports.SyncLock = (*RedisSyncLock)(nil)
