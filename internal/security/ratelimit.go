package security

import (
	"sync"
	"time"

	"github.com/acolita/termdriver/internal/adapters/realclock"
	"github.com/acolita/termdriver/internal/ports"
)

// AuthRateLimiter tracks authentication failures per endpoint and enforces
// a lockout once too many pile up.
type AuthRateLimiter struct {
	mu              sync.Mutex
	failures        map[string]*authFailure
	maxFailures     int
	lockoutDuration time.Duration
	clock           ports.Clock
}

type authFailure struct {
	count     int
	firstFail time.Time
	lockedAt  time.Time
}

// DefaultMaxAuthFailures is the default number of failures before lockout.
const DefaultMaxAuthFailures = 3

// DefaultAuthLockoutDuration is the default lockout duration.
const DefaultAuthLockoutDuration = 5 * time.Minute

// NewAuthRateLimiter creates a new auth rate limiter. A nil clock selects
// the real one.
func NewAuthRateLimiter(maxFailures int, lockoutDuration time.Duration, clock ports.Clock) *AuthRateLimiter {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxAuthFailures
	}
	if lockoutDuration <= 0 {
		lockoutDuration = DefaultAuthLockoutDuration
	}
	if clock == nil {
		clock = realclock.New()
	}
	return &AuthRateLimiter{
		failures:        make(map[string]*authFailure),
		maxFailures:     maxFailures,
		lockoutDuration: lockoutDuration,
		clock:           clock,
	}
}

// IsLocked reports whether endpoint is locked out and for how much longer.
func (r *AuthRateLimiter) IsLocked(endpoint string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.failures[endpoint]
	if !ok || f.lockedAt.IsZero() {
		return false, 0
	}
	elapsed := r.clock.Now().Sub(f.lockedAt)
	if elapsed >= r.lockoutDuration {
		return false, 0
	}
	return true, r.lockoutDuration - elapsed
}

// RecordFailure records an authentication failure.
func (r *AuthRateLimiter) RecordFailure(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	f, ok := r.failures[endpoint]
	if !ok {
		f = &authFailure{firstFail: now}
		r.failures[endpoint] = f
	}

	if !f.lockedAt.IsZero() && now.Sub(f.lockedAt) >= r.lockoutDuration {
		*f = authFailure{firstFail: now}
	}

	f.count++
	if f.count >= r.maxFailures {
		f.lockedAt = now
	}
}

// RecordSuccess clears the failure count of endpoint.
func (r *AuthRateLimiter) RecordSuccess(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, endpoint)
}

// Cleanup removes expired entries.
func (r *AuthRateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for k, f := range r.failures {
		if !f.lockedAt.IsZero() && now.Sub(f.lockedAt) >= r.lockoutDuration {
			delete(r.failures, k)
			continue
		}
		if now.Sub(f.firstFail) >= 2*r.lockoutDuration {
			delete(r.failures, k)
		}
	}
}

// Len returns the number of tracked endpoints.
func (r *AuthRateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}
