package server

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const rateWindow = time.Minute

// JobRateLimiter caps print submissions per client address over a
// sliding one minute window.
type JobRateLimiter struct {
	mu        sync.Mutex
	attempts  map[string][]time.Time
	maxPerMin int
	lastPrune time.Time
	now       func() time.Time
}

// NewJobRateLimiter creates a limiter allowing maxPerMinute jobs per client.
func NewJobRateLimiter(maxPerMinute int) *JobRateLimiter {
	return &JobRateLimiter{
		attempts:  make(map[string][]time.Time),
		maxPerMin: maxPerMinute,
		now:       time.Now,
	}
}

// Allow records an attempt for clientAddr. When the window is full it
// returns false and how long until the oldest attempt expires.
func (rl *JobRateLimiter) Allow(clientAddr string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.pruneLocked(now)

	recent := window(rl.attempts[clientAddr], now)
	if len(recent) >= rl.maxPerMin {
		rl.attempts[clientAddr] = recent
		return false, recent[0].Add(rateWindow).Sub(now)
	}
	rl.attempts[clientAddr] = append(recent, now)
	return true, 0
}

// pruneLocked drops clients with no attempts inside the window, at most
// once per window.
func (rl *JobRateLimiter) pruneLocked(now time.Time) {
	if now.Sub(rl.lastPrune) < rateWindow {
		return
	}
	rl.lastPrune = now
	for addr, times := range rl.attempts {
		if len(window(times, now)) == 0 {
			delete(rl.attempts, addr)
		}
	}
}

// Clients returns how many addresses are being tracked.
func (rl *JobRateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.attempts)
}

// window returns the suffix of times newer than one window before now.
func window(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-rateWindow)
	for i, t := range times {
		if t.After(cutoff) {
			return times[i:]
		}
	}
	return times[:0]
}

// Middleware rejects requests over the limit with 429 and Retry-After.
func (rl *JobRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.Allow(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error: "too many print requests, retry later",
				Code:  "RATE_LIMITED",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
