// Package scheduler triggers monitoring jobs on cron schedules. It owns the
// single-flight guarantee: a job still running when its next trigger fires
// is skipped, so the orchestrator never sees overlapping invocations.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// HeartbeatRecorder counts scheduler ticks. The metrics aggregator satisfies
// this.
type HeartbeatRecorder interface {
	RecordHeartbeat()
}

// Scheduler runs named jobs on cron expressions or fixed intervals
type Scheduler struct {
	cron      *cron.Cron
	logger    zerolog.Logger
	heartbeat HeartbeatRecorder

	mu      sync.Mutex
	baseCtx context.Context
	entries map[string]cron.EntryID
	running bool
}

// New creates a stopped scheduler. Panicking jobs are recovered and jobs
// still running at their next trigger are skipped rather than stacked.
func New(logger zerolog.Logger) *Scheduler {
	log := logger.With().Str("component", "scheduler").Logger()
	adapter := cronLogger{logger: log}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(adapter), cron.Recover(adapter))),
		logger:  log,
		baseCtx: context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// SetHeartbeatRecorder wires tick counting
func (s *Scheduler) SetHeartbeatRecorder(rec HeartbeatRecorder) {
	s.heartbeat = rec
}

// AddJob schedules run under the given cron expression. Job names must be
// unique.
func (s *Scheduler) AddJob(name, spec string, run func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("job %q already scheduled", name)
	}
	id, err := s.cron.AddFunc(spec, func() { s.runJob(name, run) })
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", name, err)
	}
	s.entries[name] = id
	s.logger.Info().Str("job", name).Str("schedule", spec).Msg("job scheduled")
	return nil
}

// AddInterval schedules run at a fixed interval
func (s *Scheduler) AddInterval(name string, every time.Duration, run func(context.Context) error) error {
	return s.AddJob(name, fmt.Sprintf("@every %s", every), run)
}

func (s *Scheduler) runJob(name string, run func(context.Context) error) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	if s.heartbeat != nil {
		s.heartbeat.RecordHeartbeat()
	}

	start := time.Now()
	if err := run(ctx); err != nil {
		s.logger.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("scheduled job failed")
		return
	}
	s.logger.Debug().Str("job", name).Dur("elapsed", time.Since(start)).Msg("scheduled job complete")
}

// Start begins triggering jobs. The context is handed to every job run, so
// cancelling it cancels in-flight work during shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	if ctx != nil {
		s.baseCtx = ctx
	}
	jobs := len(s.entries)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("jobs", jobs).Msg("scheduler started")
}

// Stop halts triggering and waits for running jobs to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	drain := s.cron.Stop()
	<-drain.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// NextRuns returns the upcoming trigger time for every scheduled job
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		entry := s.cron.Entry(id)
		if !entry.Next.IsZero() {
			out[name] = entry.Next
		}
	}
	return out
}

// cronLogger adapts zerolog to the cron.Logger interface used by the job
// wrappers
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(logFields(keysAndValues)).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(logFields(keysAndValues)).Msg(msg)
}

func logFields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
