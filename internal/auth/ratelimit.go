package auth

import (
	"strings"
	"sync"
	"time"
)

// RateLimiter throttles login attempts per IP+username combination using a
// sliding window with a lockout once the window fills up.
type RateLimiter struct {
	mu              sync.Mutex
	attempts        map[string]*attemptRecord
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// RateLimitConfig contains configuration for the rate limiter.
type RateLimitConfig struct {
	MaxAttempts     int           // Maximum failures before lockout (default: 5)
	WindowDuration  time.Duration // Window for counting attempts (default: 15m)
	LockoutDuration time.Duration // Lockout length after max attempts (default: 30m)
}

// NewRateLimiter creates a rate limiter and starts its background cleanup.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = 15 * time.Minute
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 30 * time.Minute
	}

	rl := &RateLimiter{
		attempts:        make(map[string]*attemptRecord),
		maxAttempts:     cfg.MaxAttempts,
		windowDuration:  cfg.WindowDuration,
		lockoutDuration: cfg.LockoutDuration,
		stopCleanup:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a login attempt may proceed. When locked out it
// returns the remaining lockout duration.
func (rl *RateLimiter) Allow(ip, username string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[key(ip, username)]
	if !ok {
		return true, 0
	}

	now := time.Now()
	if now.Before(rec.lockedUntil) {
		return false, rec.lockedUntil.Sub(now).Round(time.Second)
	}
	return true, 0
}

// RecordFailure counts a failed attempt and locks the pair out once the
// window fills up.
func (rl *RateLimiter) RecordFailure(ip, username string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	k := key(ip, username)
	now := time.Now()

	rec, ok := rl.attempts[k]
	if !ok || now.Sub(rec.firstAttempt) > rl.windowDuration {
		rl.attempts[k] = &attemptRecord{count: 1, firstAttempt: now}
		return
	}

	rec.count++
	if rec.count >= rl.maxAttempts {
		rec.lockedUntil = now.Add(rl.lockoutDuration)
	}
}

// RecordSuccess clears tracking for the pair after a successful login.
func (rl *RateLimiter) RecordSuccess(ip, username string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key(ip, username))
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for k, rec := range rl.attempts {
		if now.Sub(rec.firstAttempt) > rl.windowDuration && now.After(rec.lockedUntil) {
			delete(rl.attempts, k)
		}
	}
}

func key(ip, username string) string {
	return strings.ToLower(ip + "|" + username)
}
