package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType labels the kind of a monitoring event
type EventType string

const (
	EventCheckResult  EventType = "check.result"
	EventJobCancelled EventType = "job.cancelled"
	EventJobFailed    EventType = "job.failed"
	EventSLAViolation EventType = "sla.violation"
	EventSLARecovered EventType = "sla.recovered"
)

// Event is a monitoring occurrence suitable for push transports. Result is
// set for check outcomes and nil for synthetic events such as job
// cancellations.
type Event struct {
	ID        string            `json:"id"`
	JobID     string            `json:"jobId,omitempty"`
	Type      EventType         `json:"type"`
	Severity  string            `json:"severity"`
	Result    *CheckResult      `json:"result,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEvent builds an event with a fresh ID and the current time
func NewEvent(jobID string, eventType EventType, severity string) Event {
	return Event{
		ID:        uuid.NewString(),
		JobID:     jobID,
		Type:      eventType,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	}
}

// EventSink receives monitoring events. Implementations must be safe for
// concurrent use.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// LogSink writes events to the structured log. It is the default sink when no
// push transport is configured.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink that logs published events
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish logs the event. It never fails.
func (s *LogSink) Publish(_ context.Context, event Event) error {
	entry := s.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("severity", event.Severity)
	if event.JobID != "" {
		entry = entry.Str("job_id", event.JobID)
	}
	if event.Result != nil {
		entry = entry.
			Str("check", event.Result.CheckName).
			Str("status", event.Result.Status.String()).
			Int64("duration_ms", event.Result.DurationMs)
	}
	entry.Msg("monitoring event")
	return nil
}
