package validation

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket per client. Each bucket holds maxRequests
// tokens and refills completely once per window.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	clients     map[string]*clientLimiter
	mu          sync.Mutex
	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type clientLimiter struct {
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a limiter and starts its idle-client sweeper.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		clients:     make(map[string]*clientLimiter),
		done:        make(chan struct{}),
		cleanupTick: time.NewTicker(window),
	}
	go rl.cleanup()
	return rl
}

// Allow consumes one token for clientID and reports whether one was available.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	limiter, exists := rl.clients[clientID]
	if !exists {
		now := time.Now()
		limiter = &clientLimiter{tokens: rl.maxRequests, lastRefill: now, lastSeen: now}
		rl.clients[clientID] = limiter
	}
	rl.mu.Unlock()

	return limiter.consume(rl.maxRequests, rl.window)
}

// Forget removes a client's bucket.
func (rl *RateLimiter) Forget(clientID string) {
	rl.mu.Lock()
	delete(rl.clients, clientID)
	rl.mu.Unlock()
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (cl *clientLimiter) consume(maxTokens int, window time.Duration) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := time.Now()
	cl.lastSeen = now
	if elapsed := now.Sub(cl.lastRefill); elapsed > 0 && cl.tokens < maxTokens {
		refill := int(float64(maxTokens) * float64(elapsed) / float64(window))
		if refill > 0 {
			cl.tokens = min(maxTokens, cl.tokens+refill)
			cl.lastRefill = now
		}
	}

	if cl.tokens > 0 {
		cl.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.removeIdle(time.Now().Add(-2 * rl.window))
		case <-rl.done:
			return
		}
	}
}

// removeIdle drops clients not seen since cutoff.
func (rl *RateLimiter) removeIdle(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for clientID, limiter := range rl.clients {
		limiter.mu.Lock()
		idle := limiter.lastSeen.Before(cutoff)
		limiter.mu.Unlock()
		if idle {
			delete(rl.clients, clientID)
		}
	}
}

// Close stops the sweeper. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
