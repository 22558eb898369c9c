package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/shared/server/respond"
)

// RateRule is a token bucket: Rate tokens per second up to Burst.
type RateRule struct {
	Rate  float64
	Burst int
}

// RateLimiter keeps one bucket per key. Safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter constructs a limiter; now defaults to time.Now.
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{buckets: make(map[string]*bucket), now: now}
}

// Allow takes one token from key's bucket. When the bucket is empty it returns
// false and how long until a token is available.
func (l *RateLimiter) Allow(key string, rule RateRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rule.Burst), last: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(rule.Burst), b.tokens+elapsed*rule.Rate)
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := (1 - b.tokens) / rule.Rate
	return false, time.Duration(math.Ceil(wait*1000)) * time.Millisecond
}

// RateLimit limits a route group per client IP. Groups keep separate buckets
// on a shared limiter.
func RateLimit(limiter *RateLimiter, group string, rule RateRule) gin.HandlerFunc {
	if limiter == nil {
		limiter = NewRateLimiter(nil)
	}
	return func(c *gin.Context) {
		ok, retryAfter := limiter.Allow(c.ClientIP()+"|"+group, rule)
		if ok {
			c.Next()
			return
		}
		retryMs := max(int(retryAfter/time.Millisecond), 1)
		c.Header("Retry-After", strconv.Itoa(max(int(math.Ceil(float64(retryMs)/1000)), 1)))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Too many analysis requests", gin.H{"retryAfterMs": retryMs})
	}
}
