package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/vintalabs/notification-store/internal/handler"
)

type RateLimiterConfig struct {
	RPS   float64
	Burst int
}

// RateLimiter keeps a token bucket per client IP. Idle buckets expire from
// the cache so the map does not grow with every client ever seen.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	rps      rate.Limit
	burst    int
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		limiters: cache.New(10*time.Minute, 15*time.Minute),
		rps:      rate.Limit(config.RPS),
		burst:    config.Burst,
	}
}

func (rl *RateLimiter) limiterFor(clientIP string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limiters.Get(clientIP); ok {
		return v.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rps, rl.burst)
	rl.limiters.Set(clientIP, limiter, cache.DefaultExpiration)
	return limiter
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, handler.NewErrorResponse("rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}
