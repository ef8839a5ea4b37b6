package server

import (
	"net/http"
	"sync"
	"time"
)

// rateLimiter throttles requests per client IP over a fixed one-minute
// window. It guards the credential endpoints, where unauthenticated
// callers can probe passwords.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow

	limit int
	stop  chan struct{}
}

type rateWindow struct {
	start time.Time
	count int
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		limit = 30
	}
	rl := &rateLimiter{
		windows: make(map[string]*rateWindow),
		limit:   limit,
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[clientIP]
	if !ok || now.Sub(w.start) > time.Minute {
		rl.windows[clientIP] = &rateWindow{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= rl.limit
}

// sweep drops windows that have been idle long enough to be irrelevant,
// so the map does not grow with every IP ever seen.
func (rl *rateLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-10 * time.Minute)
			for ip, w := range rl.windows {
				if w.start.Before(cutoff) {
					delete(rl.windows, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

func (rl *rateLimiter) close() {
	close(rl.stop)
}

// withRateLimit rejects over-limit clients with 429 before the handler runs.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "Too many attempts, please slow down")
			return
		}
		next(w, r)
	}
}
