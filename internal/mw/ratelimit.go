package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// callerLimiter keeps one token bucket per caller. The key is the
// authenticated user when available so NAT'ed fleets don't share a bucket,
// falling back to the client IP for unauthenticated requests.
type callerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

func newCallerLimiter(r rate.Limit, b int) *callerLimiter {
	return &callerLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
	}
}

func (l *callerLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limiters[key] = lim
	}
	return lim
}

// RateLimiter is a middleware for per-caller rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := newCallerLimiter(r, b)
	return func(c *gin.Context) {
		key := c.ClientIP()
		if identity, ok := IdentityFrom(c); ok {
			key = identity.UserID
		}
		if !limiter.limiter(key).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
