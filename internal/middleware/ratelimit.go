package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/askdoc/internal/pkg/errcode"
	"github.com/xxxsen/askdoc/internal/pkg/response"
)

type rateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	last      map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// RateLimit rejects a second request for the same client+path within the
// window. Question endpoints are expensive (two upstream model calls), a
// simple per-client window is enough here.
func RateLimit(window time.Duration) gin.HandlerFunc {
	limiter := &rateLimiter{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
	return limiter.handle
}

func (l *rateLimiter) handle(c *gin.Context) {
	if l.window <= 0 {
		c.Next()
		return
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	key := strings.Join([]string{c.ClientIP(), path}, "|")

	now := l.now()
	l.mu.Lock()
	l.sweepLocked(now)
	previous, seen := l.last[key]
	if seen && now.Sub(previous) < l.window {
		l.mu.Unlock()
		response.Error(c, errcode.ErrTooMany, "too many requests")
		c.Abort()
		return
	}
	l.last[key] = now
	l.mu.Unlock()
	c.Next()
}

func (l *rateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for key, seen := range l.last {
		if now.Sub(seen) >= l.window {
			delete(l.last, key)
		}
	}
	l.lastSweep = now
}
