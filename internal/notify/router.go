package notify

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"go.uber.org/multierr"
)

// Router fans a message out to every configured channel whose filters accept
// it. Channel failures are isolated: one failing channel never blocks the
// others, and a failing destination is eventually shed by its circuit
// breaker. Messages are never retried.
type Router struct {
	channels   []Channel
	transports map[ChannelType]Transport
	breakers   map[string]*gobreaker.CircuitBreaker
	limiter    RateLimiter
	httpClient *http.Client
	now        func() time.Time
	location   *time.Location
	logger     zerolog.Logger
}

// RouterOption customizes a Router
type RouterOption func(*Router)

// WithHTTPClient sets the client used by webhook-style transports
func WithHTTPClient(client *http.Client) RouterOption {
	return func(r *Router) { r.httpClient = client }
}

// WithTransport overrides the transport for a channel type
func WithTransport(channelType ChannelType, transport Transport) RouterOption {
	return func(r *Router) { r.transports[channelType] = transport }
}

// WithRateLimiter replaces the default per-channel rate limiter
func WithRateLimiter(limiter RateLimiter) RouterOption {
	return func(r *Router) { r.limiter = limiter }
}

// WithClock injects the time source used for business-hours gating
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// WithLocation sets the time zone business hours are evaluated in
func WithLocation(loc *time.Location) RouterOption {
	return func(r *Router) { r.location = loc }
}

// NewRouter creates a router for the given channels
func NewRouter(channels []Channel, logger zerolog.Logger, opts ...RouterOption) *Router {
	r := &Router{
		channels:   channels,
		transports: make(map[ChannelType]Transport),
		breakers:   make(map[string]*gobreaker.CircuitBreaker, len(channels)),
		now:        time.Now,
		location:   time.Local,
		logger:     logger.With().Str("component", "notify").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.limiter == nil {
		r.limiter = NewRateLimiter(channels)
	}
	if r.httpClient == nil {
		r.httpClient = defaultHTTPClient()
	}
	if _, ok := r.transports[ChannelSlack]; !ok {
		r.transports[ChannelSlack] = &webhookTransport{client: r.httpClient, format: FormatSlack}
	}
	if _, ok := r.transports[ChannelTeams]; !ok {
		r.transports[ChannelTeams] = &webhookTransport{client: r.httpClient, format: FormatTeams}
	}
	if _, ok := r.transports[ChannelWebhook]; !ok {
		r.transports[ChannelWebhook] = &webhookTransport{client: r.httpClient, format: FormatWebhook}
	}
	if _, ok := r.transports[ChannelEmail]; !ok {
		r.transports[ChannelEmail] = &smtpTransport{}
	}

	for _, ch := range channels {
		r.breakers[ch.Name] = newBreaker(ch.Name)
	}

	return r
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})
}

// Channels returns the configured channels
func (r *Router) Channels() []Channel {
	out := make([]Channel, len(r.channels))
	copy(out, r.channels)
	return out
}

// Send routes the message to all accepting channels. The returned error
// aggregates per-channel delivery failures; a non-nil error still means
// every other channel was attempted.
func (r *Router) Send(ctx context.Context, msg Message) error {
	var errs error
	for _, ch := range r.channels {
		if !ch.IsEnabled() || !r.accepts(ch, msg) {
			continue
		}
		if !r.limiter.Allow(ch.Name) {
			r.logger.Warn().
				Str("channel", ch.Name).
				Str("subject", msg.Subject).
				Msg("notification dropped by rate limit")
			continue
		}
		if err := r.deliver(ctx, ch, msg); err != nil {
			r.logger.Error().
				Err(err).
				Str("channel", ch.Name).
				Str("subject", msg.Subject).
				Msg("notification delivery failed")
			errs = multierr.Append(errs, fmt.Errorf("channel %s: %w", ch.Name, err))
		}
	}
	return errs
}

// TestChannel pushes a synthetic message through the named channel's
// transport, bypassing filters and rate limits so operators can verify
// wiring. The circuit breaker still applies.
func (r *Router) TestChannel(ctx context.Context, name string) error {
	for _, ch := range r.channels {
		if ch.Name != name {
			continue
		}
		msg := Message{
			Subject:   "Vigil channel test",
			Body:      fmt.Sprintf("Test notification for channel %q.", name),
			Severity:  SeverityInfo,
			Category:  CategoryTest,
			Source:    "vigil",
			Timestamp: r.now(),
		}
		return r.deliver(ctx, ch, msg)
	}
	return fmt.Errorf("unknown channel %q", name)
}

func (r *Router) deliver(ctx context.Context, ch Channel, msg Message) error {
	transport, ok := r.transports[ch.Type]
	if !ok {
		return fmt.Errorf("no transport for channel type %q", ch.Type)
	}
	_, err := r.breakers[ch.Name].Execute(func() (interface{}, error) {
		return nil, transport.Deliver(ctx, ch, msg)
	})
	return err
}

// accepts applies the channel's filters: severity floor, business hours,
// category allow-list. All must pass.
func (r *Router) accepts(ch Channel, msg Message) bool {
	if msg.Severity < ch.MinSeverity {
		return false
	}
	if ch.BusinessHoursOnly && !withinBusinessHours(r.now().In(r.location)) {
		return false
	}
	if len(ch.Categories) > 0 && !slices.Contains(ch.Categories, msg.Category) {
		return false
	}
	return true
}

// withinBusinessHours reports whether t falls on Monday through Friday
// between 09:00 inclusive and 17:00 exclusive.
func withinBusinessHours(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return t.Hour() >= 9 && t.Hour() < 17
}
