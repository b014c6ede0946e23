// Package ratelimit implements a token bucket limiter keyed by API caller.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter manages per-caller request budgets.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerHour is the sustained budget per caller; zero or
	// negative disables limiting.
	RequestsPerHour int
	// Burst is the instantaneous allowance; defaults to the hourly
	// budget so idle callers can catch up.
	Burst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(float64(cfg.RequestsPerHour) / 3600)
	if cfg.RequestsPerHour <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerHour
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// Allow reports whether the caller has budget for one more request.
func (l *Limiter) Allow(caller string) bool {
	if caller == "" {
		caller = "anonymous"
	}
	l.mu.Lock()
	limiter, exists := l.limiters[caller]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[caller] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
