package bot

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(max int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := newFakeClock()
	limiter := NewRateLimiter(max, window)
	limiter.now = clock.Now
	return limiter, clock
}

func TestRateLimiter_Allow_UnderLimit(t *testing.T) {
	limiter, _ := newTestLimiter(3, time.Second)

	for i := 1; i <= 3; i++ {
		if !limiter.Allow(123) {
			t.Errorf("Request %d should be allowed", i)
		}
	}
}

func TestRateLimiter_Allow_ExceedLimit(t *testing.T) {
	limiter, _ := newTestLimiter(2, time.Second)

	limiter.Allow(123)
	limiter.Allow(123)

	if limiter.Allow(123) {
		t.Error("Third request should be denied")
	}
}

func TestRateLimiter_Allow_WindowExpiry(t *testing.T) {
	limiter, clock := newTestLimiter(2, 200*time.Millisecond)

	limiter.Allow(123)
	limiter.Allow(123)
	if limiter.Allow(123) {
		t.Error("Request should be denied when limit reached")
	}

	clock.Advance(250 * time.Millisecond)

	if !limiter.Allow(123) {
		t.Error("Request should be allowed after window expiry")
	}
}

func TestRateLimiter_MultipleChatsSeparate(t *testing.T) {
	limiter, _ := newTestLimiter(2, time.Second)

	limiter.Allow(123)
	limiter.Allow(123)

	if limiter.Allow(123) {
		t.Error("Chat 1 should be rate limited")
	}
	if !limiter.Allow(456) {
		t.Error("Chat 2 should be allowed (independent limit)")
	}
}

func TestRateLimiter_RemainingCooldown(t *testing.T) {
	limiter, clock := newTestLimiter(2, 500*time.Millisecond)

	if cooldown := limiter.RemainingCooldown(123); cooldown != 0 {
		t.Errorf("Expected 0 cooldown initially, got %v", cooldown)
	}

	limiter.Allow(123)
	clock.Advance(100 * time.Millisecond)
	limiter.Allow(123)

	if cooldown := limiter.RemainingCooldown(123); cooldown != 400*time.Millisecond {
		t.Errorf("Expected 400ms cooldown, got %v", cooldown)
	}

	clock.Advance(250 * time.Millisecond)
	if cooldown := limiter.RemainingCooldown(123); cooldown != 150*time.Millisecond {
		t.Errorf("Expected 150ms cooldown, got %v", cooldown)
	}

	clock.Advance(200 * time.Millisecond)
	if cooldown := limiter.RemainingCooldown(123); cooldown != 0 {
		t.Errorf("Expected 0 cooldown after expiry, got %v", cooldown)
	}
}

func TestRateLimiter_GetRequestCount(t *testing.T) {
	limiter, clock := newTestLimiter(5, 500*time.Millisecond)

	if count := limiter.GetRequestCount(123); count != 0 {
		t.Errorf("Expected 0 requests initially, got %d", count)
	}

	limiter.Allow(123)
	limiter.Allow(123)
	limiter.Allow(123)

	if count := limiter.GetRequestCount(123); count != 3 {
		t.Errorf("Expected 3 requests, got %d", count)
	}

	clock.Advance(550 * time.Millisecond)

	if count := limiter.GetRequestCount(123); count != 0 {
		t.Errorf("Expected 0 requests after expiry, got %d", count)
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	limiter, _ := newTestLimiter(2, time.Second)

	limiter.Allow(123)
	limiter.Allow(123)
	if limiter.Allow(123) {
		t.Error("Should be at limit before reset")
	}

	limiter.Reset(123)

	if !limiter.Allow(123) {
		t.Error("Should be allowed after reset")
	}
}

func TestRateLimiter_ResetAll(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Second)

	limiter.Allow(123)
	limiter.Allow(456)

	if limiter.Allow(123) || limiter.Allow(456) {
		t.Error("Both chats should be at limit")
	}

	limiter.ResetAll()

	if !limiter.Allow(123) || !limiter.Allow(456) {
		t.Error("Both chats should be allowed after reset")
	}
}

func TestRateLimiter_DefaultValues(t *testing.T) {
	limiter := NewRateLimiter(0, 0)

	if limiter.maxRequests != defaultMaxRequests {
		t.Errorf("Expected default maxRequests of %d, got %d", defaultMaxRequests, limiter.maxRequests)
	}
	if limiter.window != defaultWindow {
		t.Errorf("Expected default window of %v, got %v", defaultWindow, limiter.window)
	}
}

func TestRateLimiter_SetLimits(t *testing.T) {
	limiter, _ := newTestLimiter(5, time.Second)

	limiter.Allow(123)
	limiter.Allow(123)

	limiter.SetLimits(2, time.Second)
	if limiter.Allow(123) {
		t.Error("Lowered limit should apply to existing history")
	}

	limiter.SetLimits(3, time.Second)
	if !limiter.Allow(123) {
		t.Error("Raised limit should allow another request")
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	limiter := NewRateLimiter(100, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chatID := int64(i % 10)
			limiter.Allow(chatID)
			limiter.GetRequestCount(chatID)
			limiter.RemainingCooldown(chatID)
		}(i)
	}
	wg.Wait()
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	limiter, clock := newTestLimiter(3, 300*time.Millisecond)

	limiter.Allow(123) // t=0
	clock.Advance(100 * time.Millisecond)
	limiter.Allow(123) // t=100
	clock.Advance(100 * time.Millisecond)
	limiter.Allow(123) // t=200

	if limiter.Allow(123) {
		t.Error("Should be denied at t=200")
	}

	clock.Advance(150 * time.Millisecond) // t=350

	if !limiter.Allow(123) {
		t.Error("Should be allowed at t=350")
	}
}
