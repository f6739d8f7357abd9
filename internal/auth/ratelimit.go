package auth

import (
	"context"
	"sync"
	"time"

	"recast/internal/logging"
)

// RateLimitConfig configures per-key request throttling.
type RateLimitConfig struct {
	Enabled           bool `toml:"enabled" json:"enabled"`
	RequestsPerMinute int  `toml:"requests_per_minute" json:"requestsPerMinute"`
	BurstSize         int  `toml:"burst_size" json:"burstSize"`
	CleanupInterval   int  `toml:"cleanup_interval" json:"cleanupInterval"` // seconds
}

// DefaultRateLimitConfig returns the defaults used when server.toml
// does not configure throttling.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           false,
		RequestsPerMinute: 120,
		BurstSize:         20,
		CleanupInterval:   300,
	}
}

// RateLimiter implements token bucket rate limiting keyed by API key.
type RateLimiter struct {
	config  RateLimitConfig
	buckets map[string]*tokenBucket
	mu      sync.Mutex
	logger  *logging.Logger
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(config RateLimitConfig, logger *logging.Logger) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 120
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 20
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 300
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*tokenBucket),
		logger:  logger,
	}
}

// Allow consumes one token for the key. When denied it returns the
// seconds until the next token becomes available.
func (r *RateLimiter) Allow(keyID string) (bool, int) {
	if !r.config.Enabled {
		return true, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.buckets[keyID]
	if !exists {
		bucket = &tokenBucket{
			tokens:     float64(r.config.BurstSize),
			lastRefill: time.Now(),
		}
		r.buckets[keyID] = bucket
	}

	now := time.Now()
	perSecond := float64(r.config.RequestsPerMinute) / 60.0
	bucket.tokens += now.Sub(bucket.lastRefill).Seconds() * perSecond
	bucket.lastRefill = now
	if bucket.tokens > float64(r.config.BurstSize) {
		bucket.tokens = float64(r.config.BurstSize)
	}

	if bucket.tokens >= 1.0 {
		bucket.tokens -= 1.0
		return true, 0
	}

	retryAfter := int((1.0-bucket.tokens)/perSecond) + 1
	return false, retryAfter
}

// Reset clears the bucket for a key, for instance after revocation.
func (r *RateLimiter) Reset(keyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buckets, keyID)
}

// StartCleanup evicts idle buckets in the background until the context
// is cancelled.
func (r *RateLimiter) StartCleanup(ctx context.Context) {
	if !r.config.Enabled {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Duration(r.config.CleanupInterval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.cleanup()
			}
		}
	}()
}

func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	removed := 0
	for keyID, bucket := range r.buckets {
		if bucket.lastRefill.Before(cutoff) {
			delete(r.buckets, keyID)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("Rate limit cleanup", map[string]interface{}{
			"removed":   removed,
			"remaining": len(r.buckets),
		})
	}
}
