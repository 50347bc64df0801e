package shopee

import (
	"fmt"
	"sync"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/metrics"

	"github.com/rs/zerolog"
)

// ClientPool caches one client per partner application.
// Clients share the pool's token manager and rate limiter.
type ClientPool struct {
	mu          sync.Mutex
	clients     map[string]*Client
	cfg         ClientConfig
	tokens      *TokenManager
	rateLimiter *RateLimiter
	retryConfig RetryConfig
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewClientPool creates a pool with default retry options
func NewClientPool(cfg ClientConfig, tokens *TokenManager, logger zerolog.Logger) *ClientPool {
	return NewClientPoolWithOptions(cfg, tokens, nil, DefaultRetryConfig(), nil, logger)
}

// NewClientPoolWithOptions creates a pool with rate limiting and retry options
func NewClientPoolWithOptions(
	cfg ClientConfig,
	tokens *TokenManager,
	rateLimiter *RateLimiter,
	retryConfig RetryConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ClientPool {
	return &ClientPool{
		clients:     make(map[string]*Client),
		cfg:         cfg,
		tokens:      tokens,
		rateLimiter: rateLimiter,
		retryConfig: retryConfig,
		metrics:     m,
		logger:      logger,
	}
}

// GetClient returns the client for keys, creating it on first use.
// Missing keys fail here, before any request is signed.
func (p *ClientPool) GetClient(keys domain.AppKeys) (*Client, error) {
	if !keys.Valid() {
		return nil, ErrMissingAppKeys
	}
	// the key is part of the cache key so a rotated partner key gets a new signer
	cacheKey := fmt.Sprintf("%d:%s", keys.PartnerID, keys.PartnerKey)

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[cacheKey]; ok {
		return c, nil
	}
	c, err := NewClientWithOptions(p.cfg, keys, p.tokens, p.rateLimiter, p.retryConfig, p.metrics, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create shopee client: %w", err)
	}
	p.clients[cacheKey] = c
	return c, nil
}
