package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig configures rate limiting behavior
type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// rateLimiterMap stores rate limiters per client IP
type rateLimiterMap struct {
	limiters map[string]*rate.Limiter
	seen     map[string]time.Time
	mu       sync.Mutex
	config   RateLimiterConfig
}

// NewRateLimiterMap creates a new rate limiter map
func NewRateLimiterMap(config RateLimiterConfig) *rateLimiterMap {
	rl := &rateLimiterMap{
		limiters: make(map[string]*rate.Limiter),
		seen:     make(map[string]time.Time),
		config:   config,
	}

	// Clean up old limiters periodically
	go rl.cleanup()

	return rl
}

// getLimiter returns or creates a rate limiter for the given IP
func (rl *rateLimiterMap) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)
		rl.limiters[ip] = limiter
	}
	rl.seen[ip] = time.Now()

	return limiter
}

// cleanup drops limiters for IPs idle longer than an hour
func (rl *rateLimiterMap) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-time.Hour)
		rl.mu.Lock()
		for ip, last := range rl.seen {
			if last.Before(cutoff) {
				delete(rl.limiters, ip)
				delete(rl.seen, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimiter limits requests per client IP. Settlement endpoints sit
// behind it so a retry storm cannot flood the network operator account.
func RateLimiter(config RateLimiterConfig) gin.HandlerFunc {
	limiters := NewRateLimiterMap(config)

	return func(c *gin.Context) {
		limiter := limiters.getLimiter(c.ClientIP())
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, slow down",
			})
			return
		}
		c.Next()
	}
}
