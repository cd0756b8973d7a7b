package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter manages rate limits for multiple control API clients
type Limiter struct {
	limiters map[string]*entry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	perMin   int
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a new rate limiter
// requestsPerMinute: sustained requests allowed per minute per client (e.g., 120)
// burst: max requests in a burst (e.g., 20)
func NewLimiter(requestsPerMinute int, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	r := rate.Limit(float64(requestsPerMinute) / 60.0)

	return &Limiter{
		limiters: make(map[string]*entry),
		rate:     r,
		burst:    burst,
		perMin:   requestsPerMinute,
	}
}

// RequestsPerMinute returns the configured sustained rate
func (l *Limiter) RequestsPerMinute() int {
	return l.perMin
}

// GetLimiter returns the rate limiter for a specific client
func (l *Limiter) GetLimiter(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.limiters[client]
	if !exists {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[client] = e
	}
	e.lastSeen = time.Now()

	return e.limiter
}

// Allow checks if a request is allowed for the given client
func (l *Limiter) Allow(client string) bool {
	return l.GetLimiter(client).Allow()
}

// Tokens returns the current number of available tokens for a client
func (l *Limiter) Tokens(client string) float64 {
	return l.GetLimiter(client).Tokens()
}

// Prune drops clients not seen for longer than idle and returns how many were removed
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	removed := 0
	for client, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, client)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
