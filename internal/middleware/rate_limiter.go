package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/passpolicy/pkg/httputil"
)

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
	// Idle is how long a client's bucket is kept after its last request.
	Idle time.Duration
	// KeyFunc picks the bucket for a request. Defaults to the client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimiter keeps one token bucket per client.
type RateLimiter struct {
	config  RateLimiterConfig
	mu      sync.Mutex
	buckets *cache.Cache
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Idle <= 0 {
		config.Idle = 10 * time.Minute
	}
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	return &RateLimiter{
		config:  config,
		buckets: cache.New(config.Idle, config.Idle),
	}
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(rl.config.Rate, rl.config.Burst)
	}
	// Refresh the expiry on every hit.
	rl.buckets.SetDefault(key, lim)
	return lim.(*rate.Limiter)
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.bucket(rl.config.KeyFunc(c)).Allow() {
			if rl.config.Rate > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(1/float64(rl.config.Rate)))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httputil.ErrorBody{
				Code:    "rate_limited",
				Message: "Too many requests.",
			})
			return
		}
		c.Next()
	}
}
