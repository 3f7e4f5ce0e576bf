package server

import (
	"context"
	"sync"
	"time"

	"github.com/raaihank/rcp-pseudonymizer/internal/config"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	config  config.RateLimitConfig
	clients map[string]*clientLimiter
	mu      sync.Mutex
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:  cfg,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow checks if a request from the given client IP is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.config.Enabled {
		return true
	}
	return r.getLimiter(clientIP).Allow()
}

func (r *RateLimiter) getLimiter(clientIP string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[clientIP]
	if !ok {
		c = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst),
		}
		r.clients[clientIP] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

// CleanupOldClients forgets clients idle for longer than maxIdle and
// returns how many were removed
func (r *RateLimiter) CleanupOldClients(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for ip, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine runs CleanupOldClients every interval until ctx is done
func (r *RateLimiter) StartCleanupRoutine(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanupOldClients(maxIdle)
			}
		}
	}()
}

// Clients returns the number of tracked clients
func (r *RateLimiter) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
