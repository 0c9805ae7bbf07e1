package notify

import (
	"testing"
	"time"
)

// fixedClock drives the limiter deterministically
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(channels []Channel) (*ChannelRateLimiter, *fixedClock) {
	clock := &fixedClock{now: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
	limiter := NewRateLimiter(channels)
	limiter.now = func() time.Time { return clock.now }
	return limiter, clock
}

func TestRateLimiter_NoPolicy(t *testing.T) {
	limiter, _ := newTestLimiter([]Channel{{Name: "free"}})

	for i := 0; i < 100; i++ {
		if !limiter.Allow("free") {
			t.Fatalf("channel without policy rejected at send %d", i)
		}
	}
}

func TestRateLimiter_UnknownChannel(t *testing.T) {
	limiter, _ := newTestLimiter(nil)

	if !limiter.Allow("never-configured") {
		t.Error("unknown channels must always pass")
	}
}

func TestRateLimiter_Burst(t *testing.T) {
	limiter, clock := newTestLimiter([]Channel{{
		Name:      "ops",
		RateLimit: RateLimitPolicy{PerMinute: 60, Burst: 3},
	}})

	for i := 0; i < 3; i++ {
		if !limiter.Allow("ops") {
			t.Fatalf("expected burst to allow send %d", i)
		}
	}
	if limiter.Allow("ops") {
		t.Error("expected send beyond burst to be rejected")
	}

	// 60 per minute refills one token per second
	clock.advance(1100 * time.Millisecond)
	if !limiter.Allow("ops") {
		t.Error("expected a token after refill interval")
	}
	if limiter.Allow("ops") {
		t.Error("expected only one token to have refilled")
	}
}

func TestRateLimiter_HourlyWindow(t *testing.T) {
	limiter, clock := newTestLimiter([]Channel{{
		Name:      "ops",
		RateLimit: RateLimitPolicy{PerHour: 2},
	}})

	if !limiter.Allow("ops") || !limiter.Allow("ops") {
		t.Fatal("expected first two sends within hourly cap")
	}
	if limiter.Allow("ops") {
		t.Error("expected third send to exceed hourly cap")
	}

	clock.advance(61 * time.Minute)
	if !limiter.Allow("ops") {
		t.Error("expected quota back after the window slid")
	}
}

func TestRateLimiter_CombinedPolicies(t *testing.T) {
	limiter, clock := newTestLimiter([]Channel{{
		Name:      "ops",
		RateLimit: RateLimitPolicy{PerMinute: 60, Burst: 2, PerHour: 3},
	}})

	if !limiter.Allow("ops") || !limiter.Allow("ops") {
		t.Fatal("expected burst of two")
	}
	if limiter.Allow("ops") {
		t.Error("expected bucket to be empty after burst")
	}

	clock.advance(2 * time.Second)
	if !limiter.Allow("ops") {
		t.Error("expected third send after refill")
	}

	// Hourly cap of three is now exhausted even though tokens refill
	clock.advance(2 * time.Second)
	if limiter.Allow("ops") {
		t.Error("expected hourly cap to reject the fourth send")
	}

	clock.advance(61 * time.Minute)
	if !limiter.Allow("ops") {
		t.Error("expected send after hourly window slid")
	}
}

func TestRateLimiter_ChannelsIndependent(t *testing.T) {
	limiter, _ := newTestLimiter([]Channel{
		{Name: "a", RateLimit: RateLimitPolicy{PerHour: 1}},
		{Name: "b", RateLimit: RateLimitPolicy{PerHour: 1}},
	})

	if !limiter.Allow("a") {
		t.Fatal("expected first send on a")
	}
	if limiter.Allow("a") {
		t.Error("expected a to be capped")
	}
	if !limiter.Allow("b") {
		t.Error("exhausting a must not affect b")
	}
}
