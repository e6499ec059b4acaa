package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CreateLimiter caps room creations per client address. Token bucket:
// full burst up front, refilled evenly across the window.
type CreateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	r        rate.Limit
	burst    int
	window   time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewCreateLimiter(limit int, window time.Duration) *CreateLimiter {
	l := &CreateLimiter{
		visitors: make(map[string]*visitor),
		r:        rate.Every(window / time.Duration(limit)),
		burst:    limit,
		window:   window,
	}
	go l.cleanup()
	return l
}

func (l *CreateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.r, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()

	return v.limiter.Allow()
}

// Middleware rejects over-limit creations without creating a room.
func (l *CreateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many rooms created from this IP. Try again later.",
			})
			return
		}
		c.Next()
	}
}

// cleanup evicts visitors idle for two windows.
func (l *CreateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		for ip, v := range l.visitors {
			if time.Since(v.lastSeen) > 2*l.window {
				delete(l.visitors, ip)
			}
		}
		l.mu.Unlock()
	}
}
