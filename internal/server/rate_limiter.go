package server

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Stale windows are swept once this many clients are tracked.
const limiterSweepSize = 4096

type window struct {
	opened time.Time
	hits   int
}

// rateLimiter allows limit hits per client in each fixed window.
type rateLimiter struct {
	limit  int
	length time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]window
}

func newRateLimiter(limit int, length time.Duration, now func() time.Time) *rateLimiter {
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{limit: limit, length: length, now: now, windows: map[string]window{}}
}

// Allow counts one hit for client. When the client is over its limit the
// returned duration is how long until its window reopens.
func (r *rateLimiter) Allow(client string) (bool, time.Duration) {
	if client == "" {
		return false, r.length
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[client]
	if !ok || now.Sub(w.opened) > r.length {
		if !ok && len(r.windows) >= limiterSweepSize {
			r.sweep(now)
		}
		w = window{opened: now}
	}
	if w.hits >= r.limit {
		return false, w.opened.Add(r.length).Sub(now)
	}
	w.hits++
	r.windows[client] = w
	return true, 0
}

func (r *rateLimiter) sweep(now time.Time) {
	for client, w := range r.windows {
		if now.Sub(w.opened) > r.length {
			delete(r.windows, client)
		}
	}
}

// RateLimited answers 429 with Retry-After once a client IP exceeds the limit.
func (s *Server) RateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		if ok, wait := s.limiter.Allow(c.ClientIP()); !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
