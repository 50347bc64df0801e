package shopee

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter throttles upstream calls per partner application
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	logger   zerolog.Logger
}

// NewRateLimiter creates a limiter allowing perSecond calls per key
func NewRateLimiter(perSecond float64, logger zerolog.Logger) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		logger:   logger,
	}
}

func (r *RateLimiter) limiterFor(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = l
	}
	return l
}

// Wait blocks until a call for key is allowed or ctx is done
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	if r == nil {
		return nil
	}
	start := time.Now()
	if err := r.limiterFor(key).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Second {
		r.logger.Debug().
			Str("partner", key).
			Dur("waited", waited).
			Msg("Throttled by rate limiter")
	}
	return nil
}
