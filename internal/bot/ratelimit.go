package bot

import (
	"sync"
	"time"
)

const (
	defaultMaxRequests = 20
	defaultWindow      = time.Minute
)

// RateLimiter implements a sliding window rate limiter per chat
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	requests    map[int64][]time.Time
	now         func() time.Time
}

// NewRateLimiter creates a new rate limiter
// maxRequests: maximum number of commands allowed within the window
// window: time window for rate limiting (e.g., 1 minute)
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	r := &RateLimiter{
		requests: make(map[int64][]time.Time),
		now:      time.Now,
	}
	r.SetLimits(maxRequests, window)
	return r
}

// SetLimits changes the budget. History is kept so a lowered limit
// applies immediately.
func (r *RateLimiter) SetLimits(maxRequests int, window time.Duration) {
	if maxRequests <= 0 {
		maxRequests = defaultMaxRequests
	}
	if window <= 0 {
		window = defaultWindow
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxRequests = maxRequests
	r.window = window
}

// recent drops history outside the window. Callers hold r.mu.
func (r *RateLimiter) recent(chatID int64, now time.Time) []time.Time {
	history := r.requests[chatID]
	cutoff := now.Add(-r.window)

	valid := history[:0]
	for _, t := range history {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		delete(r.requests, chatID)
		return nil
	}
	r.requests[chatID] = valid
	return valid
}

// Allow checks if a command from the given chat ID is allowed and counts it
func (r *RateLimiter) Allow(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	valid := r.recent(chatID, now)
	if len(valid) >= r.maxRequests {
		return false
	}

	r.requests[chatID] = append(valid, now)
	return true
}

// RemainingCooldown returns the duration until the next command is allowed
// Returns 0 if a command is currently allowed
func (r *RateLimiter) RemainingCooldown(chatID int64) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	valid := r.recent(chatID, now)
	if len(valid) < r.maxRequests {
		return 0
	}

	// The oldest entry leaves the window first.
	remaining := valid[len(valid)-r.maxRequests].Add(r.window).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetRequestCount returns the current number of commands in the window for a chat
func (r *RateLimiter) GetRequestCount(chatID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recent(chatID, r.now()))
}

// Reset clears the request history for a specific chat
func (r *RateLimiter) Reset(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, chatID)
}

// ResetAll clears all request history
func (r *RateLimiter) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = make(map[int64][]time.Time)
}
