package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterIdleTTL bounds how long an idle client keeps its limiter; entries
// expire so the set does not grow with one-off clients.
const limiterIdleTTL = 10 * time.Minute

// RateLimiter is a middleware for per-client-IP rate limiting.
func RateLimiter(r rate.Limit, burst int) gin.HandlerFunc {
	limiters := cache.New(limiterIdleTTL, 2*limiterIdleTTL)
	var mu sync.Mutex

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		var limiter *rate.Limiter
		if v, found := limiters.Get(ip); found {
			limiter = v.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(r, burst)
		}
		// Refreshes the idle clock on every request.
		limiters.Set(ip, limiter, cache.DefaultExpiration)
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
