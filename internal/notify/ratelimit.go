package notify

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether a channel may receive another notification.
// Implementations must be safe for concurrent use.
type RateLimiter interface {
	Allow(channel string) bool
}

// ChannelRateLimiter enforces each channel's RateLimitPolicy: a token bucket
// for the per-minute rate with bursts, plus a sliding one-hour window cap.
type ChannelRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*channelLimiter
	now      func() time.Time
}

type channelLimiter struct {
	bucket  *rate.Limiter
	perHour int
	sent    []time.Time
}

// NewRateLimiter builds a limiter for the given channels. Channels without a
// policy are unlimited.
func NewRateLimiter(channels []Channel) *ChannelRateLimiter {
	limiters := make(map[string]*channelLimiter, len(channels))
	for _, ch := range channels {
		policy := ch.RateLimit
		if policy.PerMinute == 0 && policy.PerHour == 0 {
			continue
		}

		limiter := &channelLimiter{perHour: policy.PerHour}
		if policy.PerMinute > 0 {
			burst := policy.Burst
			if burst <= 0 {
				burst = 1
			}
			limiter.bucket = rate.NewLimiter(rate.Limit(float64(policy.PerMinute)/60.0), burst)
		}
		limiters[ch.Name] = limiter
	}
	return &ChannelRateLimiter{limiters: limiters, now: time.Now}
}

// Allow reports whether the named channel may send now, consuming quota when
// it may. Channels without a policy always pass.
func (l *ChannelRateLimiter) Allow(channel string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[channel]
	if !ok {
		return true
	}

	now := l.now()

	if limiter.perHour > 0 {
		cutoff := now.Add(-time.Hour)
		kept := limiter.sent[:0]
		for _, t := range limiter.sent {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		limiter.sent = kept
		if len(limiter.sent) >= limiter.perHour {
			return false
		}
	}

	if limiter.bucket != nil && !limiter.bucket.AllowN(now, 1) {
		return false
	}

	if limiter.perHour > 0 {
		limiter.sent = append(limiter.sent, now)
	}
	return true
}
