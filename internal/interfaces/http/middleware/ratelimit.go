package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vsla/backend/internal/interfaces/http/dto"
)

// RateLimiter counts requests per caller over fixed windows. State lives
// in memory; a restart forgets all windows.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*callerWindow
}

type callerWindow struct {
	count    int
	openedAt time.Time
}

// NewRateLimiter allows limit requests per caller per window. A janitor
// goroutine drops callers that have been idle for two windows.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*callerWindow),
	}
	go rl.evictIdle()
	return rl
}

// Take consumes one request from the caller's current window. It reports
// whether the request fits and how many more the window can take.
func (rl *RateLimiter) Take(key string) (allowed bool, remaining int) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.openedAt) >= rl.window {
		w = &callerWindow{openedAt: now}
		rl.windows[key] = w
	}
	if w.count >= rl.limit {
		return false, 0
	}
	w.count++
	return true, rl.limit - w.count
}

func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(2 * rl.window)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-2 * rl.window)
		rl.mu.Lock()
		for key, w := range rl.windows {
			if w.openedAt.Before(cutoff) {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit enforces the limiter per client IP, or per actor and IP when
// the caller identifies itself via X-Actor-ID.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	limitHeader := strconv.Itoa(limiter.limit)
	retryAfter := strconv.Itoa(int(limiter.window.Seconds()))

	return func(c *gin.Context) {
		key := c.ClientIP()
		if actorID := c.GetHeader("X-Actor-ID"); actorID != "" {
			key = actorID + ":" + key
		}

		allowed, remaining := limiter.Take(key)
		if !allowed {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many requests, retry later"))
			return
		}

		c.Header("X-RateLimit-Limit", limitHeader)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}
