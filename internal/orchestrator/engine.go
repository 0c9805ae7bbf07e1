// Package orchestrator coordinates check execution: bounded parallel
// fan-out, per-check failure isolation, and the result pipeline feeding
// metrics, notifications, the result cache, history and events.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/opsvigil/vigil/internal/metrics"
	"github.com/opsvigil/vigil/internal/monitor"
	"github.com/opsvigil/vigil/internal/notify"
)

// Executor runs one kind of check. Implementations must always return a
// result rather than panic; the engine still recovers if they do.
type Executor interface {
	Execute(ctx context.Context, def monitor.CheckDefinition) monitor.CheckResult
}

// Notifier routes messages to notification channels
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// ResultSink persists check results
type ResultSink interface {
	SaveResult(ctx context.Context, result monitor.CheckResult) error
}

const (
	defaultMaxConcurrency = 8
	defaultCheckTimeout   = 30 * time.Second
)

// Engine executes every enabled check with bounded parallelism. One Execute
// call is one job; the scheduler guarantees jobs never overlap.
type Engine struct {
	checks     []monitor.CheckDefinition
	executors  map[monitor.CheckType]Executor
	aggregator *metrics.Aggregator
	notifier   Notifier
	logger     zerolog.Logger

	jobName        string
	maxConcurrency int64
	defaultTimeout time.Duration
	cache          *ResultCache
	sink           monitor.EventSink
	results        ResultSink
}

// NewEngine creates an engine over the given checks and executors
func NewEngine(checks []monitor.CheckDefinition, executors map[monitor.CheckType]Executor, aggregator *metrics.Aggregator, notifier Notifier, logger zerolog.Logger) *Engine {
	return &Engine{
		checks:         checks,
		executors:      executors,
		aggregator:     aggregator,
		notifier:       notifier,
		logger:         logger.With().Str("component", "orchestrator").Logger(),
		jobName:        "monitoring",
		maxConcurrency: defaultMaxConcurrency,
		defaultTimeout: defaultCheckTimeout,
		cache:          NewResultCache(),
	}
}

// SetJobName labels the engine's runs in logs and events
func (e *Engine) SetJobName(name string) {
	if name != "" {
		e.jobName = name
	}
}

// SetMaxConcurrency bounds how many checks run at once
func (e *Engine) SetMaxConcurrency(n int) {
	if n > 0 {
		e.maxConcurrency = int64(n)
	}
}

// SetDefaultTimeout sets the per-check deadline used when a check declares
// none
func (e *Engine) SetDefaultTimeout(d time.Duration) {
	if d > 0 {
		e.defaultTimeout = d
	}
}

// SetEventSink wires the push-event destination
func (e *Engine) SetEventSink(sink monitor.EventSink) {
	e.sink = sink
}

// SetResultSink wires result history persistence
func (e *Engine) SetResultSink(sink ResultSink) {
	e.results = sink
}

// Cache returns the latest-result cache
func (e *Engine) Cache() *ResultCache {
	return e.cache
}

// Checks returns the engine's check definitions
func (e *Engine) Checks() []monitor.CheckDefinition {
	out := make([]monitor.CheckDefinition, len(e.checks))
	copy(out, e.checks)
	return out
}

// Execute runs every enabled check once and feeds each result through the
// pipeline: metrics first, then notification, cache, history and event. A
// failing check never aborts the job. Cancellation stops dispatching, still
// yields exactly one result per enabled check, records the cancellation
// metric once, and is returned to the caller.
func (e *Engine) Execute(ctx context.Context) (err error) {
	jobID := uuid.NewString()
	logger := e.logger.With().Str("job_id", jobID).Str("job", e.jobName).Logger()

	defer func() {
		if r := recover(); r != nil {
			e.aggregator.RecordJobFailure()
			e.publishJobEvent(ctx, jobID, monitor.EventJobFailed, notify.SeverityCritical,
				fmt.Sprintf("orchestration failure: %v", r))
			logger.Error().Interface("panic", r).Msg("job failed")
			err = fmt.Errorf("job %s failed: %v", jobID, r)
		}
	}()

	e.aggregator.RecordJobStart()
	enabled := e.enabledChecks()
	logger.Info().Int("checks", len(enabled)).Msg("job started")

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		sem       = semaphore.NewWeighted(e.maxConcurrency)
		results   = make([]monitor.CheckResult, 0, len(enabled))
		cancelled bool
	)

	for _, def := range enabled {
		if acquireErr := sem.Acquire(ctx, 1); acquireErr != nil {
			// Context is gone: stop dispatching. Checks that never started
			// still report, keeping the job at one result per check.
			cancelled = true
			mu.Lock()
			results = append(results, monitor.NewCheckResult(def.Name, monitor.StatusError, "check cancelled", 0))
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(def monitor.CheckDefinition) {
			defer wg.Done()
			defer sem.Release(1)

			result := e.runCheck(ctx, def)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(def)
	}
	wg.Wait()

	if ctx.Err() != nil {
		cancelled = true
	}

	for _, result := range results {
		e.processResult(ctx, jobID, result, logger)
	}

	if cancelled {
		e.aggregator.RecordJobCancellation()
		e.publishJobEvent(context.WithoutCancel(ctx), jobID, monitor.EventJobCancelled, notify.SeverityWarning,
			fmt.Sprintf("job cancelled: %v", ctx.Err()))
		logger.Warn().Int("results", len(results)).Msg("job cancelled")
		return fmt.Errorf("job %s cancelled: %w", jobID, ctx.Err())
	}

	e.aggregator.RecordJobSuccess()
	logger.Info().Int("results", len(results)).Msg("job complete")
	return nil
}

func (e *Engine) enabledChecks() []monitor.CheckDefinition {
	enabled := make([]monitor.CheckDefinition, 0, len(e.checks))
	for _, def := range e.checks {
		if def.IsEnabled() {
			enabled = append(enabled, def)
		}
	}
	return enabled
}

// runCheck executes one check under its own deadline and converts panics
// into Error results so a defective check cannot take down the job
func (e *Engine) runCheck(ctx context.Context, def monitor.CheckDefinition) (result monitor.CheckResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("check", def.Name).Interface("panic", r).Msg("check panicked")
			result = monitor.NewCheckResult(def.Name, monitor.StatusError,
				fmt.Sprintf("check panicked: %v", r), time.Since(start).Milliseconds())
		}
	}()

	executor, ok := e.executors[def.Type]
	if !ok {
		return monitor.NewCheckResult(def.Name, monitor.StatusError,
			fmt.Sprintf("no executor registered for check type %q", def.Type), 0)
	}

	checkCtx, cancel := context.WithTimeout(ctx, e.timeoutFor(def))
	defer cancel()
	return executor.Execute(checkCtx, def)
}

// timeoutFor resolves the per-check deadline. Validation rejects bad
// durations before they get here; a parse failure falls back to the default.
func (e *Engine) timeoutFor(def monitor.CheckDefinition) time.Duration {
	if def.Timeout != "" {
		if d, err := monitor.ParseDuration(def.Timeout); err == nil {
			return d
		}
	}
	return e.defaultTimeout
}

// processResult feeds one result through the pipeline. Every stage is
// best-effort: a failing stage is logged and the rest still run.
func (e *Engine) processResult(ctx context.Context, jobID string, result monitor.CheckResult, logger zerolog.Logger) {
	if err := e.aggregator.RecordCheckResult(result.CheckName, result.Status, result.DurationMs); err != nil {
		logger.Error().Err(err).Str("check", result.CheckName).Msg("failed to record metrics")
	}

	if e.notifier != nil {
		if err := e.notifier.Send(ctx, checkMessage(result)); err != nil {
			logger.Error().Err(err).Str("check", result.CheckName).Msg("notification failed")
		}
	}

	e.cache.Set(result)

	if e.results != nil {
		if err := e.results.SaveResult(ctx, result); err != nil {
			logger.Error().Err(err).Str("check", result.CheckName).Msg("failed to persist result")
		}
	}

	if e.sink != nil {
		event := monitor.NewEvent(jobID, monitor.EventCheckResult, SeverityFor(result.Status).String())
		event.Result = &result
		if err := e.sink.Publish(ctx, event); err != nil {
			logger.Error().Err(err).Str("check", result.CheckName).Msg("failed to publish event")
		}
	}
}

func (e *Engine) publishJobEvent(ctx context.Context, jobID string, eventType monitor.EventType, severity notify.Severity, message string) {
	if e.sink == nil {
		return
	}
	event := monitor.NewEvent(jobID, eventType, severity.String())
	event.Metadata = map[string]string{
		"job":     e.jobName,
		"message": message,
	}
	if err := e.sink.Publish(ctx, event); err != nil {
		e.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to publish job event")
	}
}

// SeverityFor maps a check status onto a notification severity
func SeverityFor(status monitor.Status) notify.Severity {
	switch status {
	case monitor.StatusCritical, monitor.StatusError:
		return notify.SeverityCritical
	case monitor.StatusWarning, monitor.StatusUnhealthy:
		return notify.SeverityWarning
	default:
		return notify.SeverityInfo
	}
}

// checkMessage renders a result as a notification
func checkMessage(result monitor.CheckResult) notify.Message {
	return notify.Message{
		Subject:   fmt.Sprintf("%s: %s", result.CheckName, result.Status),
		Body:      result.Message,
		Severity:  SeverityFor(result.Status),
		Category:  notify.CategoryCheck,
		Source:    result.CheckName,
		Timestamp: result.Timestamp,
		Metadata:  result.Details,
	}
}
