package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterEntry holds a rate limiter with last used timestamp
type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// clientRateLimiter manages per-client rate limiters with automatic cleanup
type clientRateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newClientRateLimiter(limit rate.Limit, burst int) *clientRateLimiter {
	k := &clientRateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    limit,
		burst:    burst,
		stopCh:   make(chan struct{}),
	}
	go k.cleanupLoop()
	return k
}

func (k *clientRateLimiter) getLimiter(client string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	if entry, ok := k.limiters[client]; ok {
		entry.lastUsed = time.Now()
		return entry.limiter
	}
	limiter := rate.NewLimiter(k.limit, k.burst)
	k.limiters[client] = &limiterEntry{
		limiter:  limiter,
		lastUsed: time.Now(),
	}
	return limiter
}

// cleanupLoop removes stale entries every 5 minutes
func (k *clientRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.cleanup(time.Now().Add(-10 * time.Minute))
		case <-k.stopCh:
			return
		}
	}
}

// cleanup removes entries not used since cutoff
func (k *clientRateLimiter) cleanup(cutoff time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for client, entry := range k.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(k.limiters, client)
		}
	}
}

// Stop terminates the cleanup goroutine
func (k *clientRateLimiter) Stop() {
	k.stopOnce.Do(func() { close(k.stopCh) })
}

// RateLimitConfig defines configuration for the rate limiting middleware
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// RateLimiter is a per-client-IP throttle for gin routes
type RateLimiter struct {
	clients *clientRateLimiter
	period  time.Duration
}

// NewRateLimiter creates a per-IP limiter. Call Stop on shutdown.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	// Default sensible values if not provided
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 120
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 30
	}

	period := time.Minute / time.Duration(cfg.RequestsPerMinute)
	return &RateLimiter{
		clients: newClientRateLimiter(rate.Every(period), cfg.Burst),
		period:  period,
	}
}

// Middleware returns the gin handler enforcing the limit
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	retryAfter := strconv.Itoa(int((l.period + time.Second - 1) / time.Second))

	return func(c *gin.Context) {
		if !l.clients.getLimiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", retryAfter)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Stop terminates the background cleanup
func (l *RateLimiter) Stop() {
	l.clients.Stop()
}

// AuthRateLimiter is a pre-configured limiter for authentication endpoints.
// Allows 3 requests per minute per IP address.
func AuthRateLimiter() *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 3,
		Burst:             1,
	})
}
