package sla

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/opsvigil/vigil/internal/monitor"
	"github.com/opsvigil/vigil/internal/notify"
)

// MetricsSource provides the counters and duration samples compliance is
// computed from. The metrics aggregator satisfies this.
type MetricsSource interface {
	CheckCounts(name string) (total, success, failure int64)
	AverageDuration(name string) (float64, bool)
	Percentile(name string, p float64) (float64, bool)
}

// Notifier routes violation and recovery messages
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// ViolationSink persists violation lifecycle transitions. Persistence is
// best-effort: the evaluator's own records stay in memory either way.
type ViolationSink interface {
	SaveViolation(ctx context.Context, v Violation) error
	CloseViolation(ctx context.Context, id string, resolvedAt time.Time) error
}

const (
	defaultPeriod = 24 * time.Hour

	// maxResolved bounds the in-memory history of closed violations
	maxResolved = 256
)

// Evaluator recomputes per-service compliance from aggregator state and
// drives the compliant/warning/violation state machine. One evaluator owns
// the violation records for its definitions.
type Evaluator struct {
	definitions []monitor.SLADefinition
	source      MetricsSource
	notifier    Notifier
	logger      zerolog.Logger

	warningMargin float64
	sink          ViolationSink
	events        monitor.EventSink

	mu       sync.RWMutex
	states   map[string]State
	open     map[string][]Violation
	resolved []Violation
	reports  map[string]Report
}

// NewEvaluator creates an evaluator over the given definitions
func NewEvaluator(definitions []monitor.SLADefinition, source MetricsSource, notifier Notifier, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		definitions: definitions,
		source:      source,
		notifier:    notifier,
		logger:      logger.With().Str("component", "sla").Logger(),
		states:      make(map[string]State),
		open:        make(map[string][]Violation),
		reports:     make(map[string]Report),
	}
}

// SetWarningMargin enables the warning state. A compliant service is flagged
// Warning when a percent-valued metric sits within margin percentage points
// of its target, or the p95 within margin percent of its limit. Zero
// disables the band.
func (e *Evaluator) SetWarningMargin(margin float64) {
	if margin > 0 {
		e.warningMargin = margin
	}
}

// SetViolationSink wires violation persistence
func (e *Evaluator) SetViolationSink(sink ViolationSink) {
	e.sink = sink
}

// SetEventSink wires the push-event destination
func (e *Evaluator) SetEventSink(sink monitor.EventSink) {
	e.events = sink
}

// EvaluateAll recomputes every definition once against the metrics source.
// Per-service evaluation failures are collected, not short-circuited.
func (e *Evaluator) EvaluateAll(ctx context.Context, now time.Time) error {
	evalID := uuid.NewString()

	var errs error
	for _, def := range e.definitions {
		if err := e.evaluateService(ctx, evalID, def, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("service %s: %w", def.Service, err))
		}
	}
	return errs
}

func (e *Evaluator) evaluateService(ctx context.Context, evalID string, def monitor.SLADefinition, now time.Time) error {
	period := defaultPeriod
	if def.MeasurementPeriod != "" {
		d, err := monitor.ParseDuration(def.MeasurementPeriod)
		if err != nil {
			return fmt.Errorf("measurement period: %w", err)
		}
		period = d
	}

	m := e.CalculateMetrics(def.Service, period, now)
	if m.TotalChecks == 0 {
		// Nothing observed in the window. Hold the current state rather
		// than treating silence as compliance or breach.
		e.logger.Debug().Str("service", def.Service).Msg("no samples in window, state unchanged")
		return nil
	}

	newState := e.classify(m, def)

	e.mu.Lock()
	oldState, seen := e.states[def.Service]
	if !seen {
		oldState = StateCompliant
	}
	e.states[def.Service] = newState

	var opened, closed []Violation
	if newState == StateViolation {
		opened = e.openViolationsLocked(def, m, now)
	} else if len(e.open[def.Service]) > 0 {
		closed = e.closeViolationsLocked(def.Service, now)
	}

	report := Report{
		Service:    def.Service,
		State:      newState,
		Metrics:    m,
		Violations: append([]Violation(nil), e.open[def.Service]...),
	}
	e.reports[def.Service] = report
	e.mu.Unlock()

	if oldState != newState {
		e.logger.Info().
			Str("service", def.Service).
			Str("from", string(oldState)).
			Str("to", string(newState)).
			Float64("availability", m.Availability).
			Float64("success_rate", m.SuccessRate).
			Msg("sla state changed")
	}

	e.persist(ctx, opened, closed, now)

	if len(opened) > 0 {
		e.notify(ctx, violationMessage(def.Service, opened, m, now))
		e.publish(ctx, evalID, monitor.EventSLAViolation, notify.SeverityCritical, def.Service, opened)
	}
	if len(closed) > 0 {
		e.notify(ctx, recoveryMessage(def.Service, closed, now))
		e.publish(ctx, evalID, monitor.EventSLARecovered, notify.SeverityInfo, def.Service, closed)
	}
	if oldState == StateCompliant && newState == StateWarning {
		e.notify(ctx, warningMessage(def.Service, m, now))
	}
	return nil
}

// CalculateMetrics computes the compliance figures for one service over the
// given period. Availability estimates downtime from the observed failure
// ratio (period × failure/total) rather than measuring uptime directly.
func (e *Evaluator) CalculateMetrics(service string, period time.Duration, now time.Time) Metrics {
	total, success, failure := e.source.CheckCounts(service)
	m := Metrics{
		Service:          service,
		Period:           monitor.FormatDuration(period),
		TotalChecks:      total,
		SuccessfulChecks: success,
		FailedChecks:     failure,
		CalculatedAt:     now,
	}
	if total == 0 {
		return m
	}

	failureRatio := float64(failure) / float64(total)
	estimatedDowntime := time.Duration(float64(period) * failureRatio)
	m.Availability = float64(period-estimatedDowntime) / float64(period) * 100
	m.SuccessRate = float64(success) / float64(total) * 100

	if avg, ok := e.source.AverageDuration(service); ok {
		m.AvgDurationMs = avg
	}
	if p95, ok := e.source.Percentile(service, 95); ok {
		m.P95DurationMs = p95
	}
	if p99, ok := e.source.Percentile(service, 99); ok {
		m.P99DurationMs = p99
	}
	return m
}

// IsCompliant reports whether the metrics satisfy every target the
// definition sets. A single breach means non-compliance. Targets left unset
// are not evaluated.
func IsCompliant(m Metrics, def monitor.SLADefinition) bool {
	if def.AvailabilityTarget != nil && m.Availability < *def.AvailabilityTarget {
		return false
	}
	if def.SuccessRateTarget != nil && m.SuccessRate < *def.SuccessRateTarget {
		return false
	}
	if def.ResponseTimeP95Ms != nil && m.P95DurationMs > *def.ResponseTimeP95Ms {
		return false
	}
	return true
}

func (e *Evaluator) classify(m Metrics, def monitor.SLADefinition) State {
	if !IsCompliant(m, def) {
		return StateViolation
	}
	if e.warningMargin > 0 && withinWarningMargin(m, def, e.warningMargin) {
		return StateWarning
	}
	return StateCompliant
}

func withinWarningMargin(m Metrics, def monitor.SLADefinition, margin float64) bool {
	if def.AvailabilityTarget != nil && m.Availability-*def.AvailabilityTarget < margin {
		return true
	}
	if def.SuccessRateTarget != nil && m.SuccessRate-*def.SuccessRateTarget < margin {
		return true
	}
	if def.ResponseTimeP95Ms != nil && *def.ResponseTimeP95Ms-m.P95DurationMs < *def.ResponseTimeP95Ms*margin/100 {
		return true
	}
	return false
}

type breach struct {
	target   TargetType
	actual   float64
	expected float64
	message  string
}

func breaches(m Metrics, def monitor.SLADefinition) []breach {
	var out []breach
	if def.AvailabilityTarget != nil && m.Availability < *def.AvailabilityTarget {
		out = append(out, breach{
			target:   TargetAvailability,
			actual:   m.Availability,
			expected: *def.AvailabilityTarget,
			message:  fmt.Sprintf("availability %.3f%% below target %.3f%%", m.Availability, *def.AvailabilityTarget),
		})
	}
	if def.SuccessRateTarget != nil && m.SuccessRate < *def.SuccessRateTarget {
		out = append(out, breach{
			target:   TargetSuccessRate,
			actual:   m.SuccessRate,
			expected: *def.SuccessRateTarget,
			message:  fmt.Sprintf("success rate %.3f%% below target %.3f%%", m.SuccessRate, *def.SuccessRateTarget),
		})
	}
	if def.ResponseTimeP95Ms != nil && m.P95DurationMs > *def.ResponseTimeP95Ms {
		out = append(out, breach{
			target:   TargetResponseTime,
			actual:   m.P95DurationMs,
			expected: *def.ResponseTimeP95Ms,
			message:  fmt.Sprintf("p95 response time %.0fms above target %.0fms", m.P95DurationMs, *def.ResponseTimeP95Ms),
		})
	}
	return out
}

// openViolationsLocked opens a record for every breached target that does
// not already have one. Records opened earlier in the same non-compliant
// stretch stay open even if their target has recovered; only a fully
// compliant evaluation closes them.
func (e *Evaluator) openViolationsLocked(def monitor.SLADefinition, m Metrics, now time.Time) []Violation {
	existing := make(map[TargetType]bool, len(e.open[def.Service]))
	for _, v := range e.open[def.Service] {
		existing[v.Target] = true
	}

	var opened []Violation
	for _, b := range breaches(m, def) {
		if existing[b.target] {
			continue
		}
		v := Violation{
			ID:            uuid.NewString(),
			Service:       def.Service,
			Target:        b.target,
			Message:       b.message,
			ActualValue:   b.actual,
			ExpectedValue: b.expected,
			ViolationTime: now,
		}
		e.open[def.Service] = append(e.open[def.Service], v)
		opened = append(opened, v)
	}
	return opened
}

func (e *Evaluator) closeViolationsLocked(service string, now time.Time) []Violation {
	closed := make([]Violation, 0, len(e.open[service]))
	for _, v := range e.open[service] {
		resolvedAt := now
		v.ResolvedTime = &resolvedAt
		closed = append(closed, v)
		e.resolved = append(e.resolved, v)
	}
	delete(e.open, service)

	if excess := len(e.resolved) - maxResolved; excess > 0 {
		e.resolved = append([]Violation(nil), e.resolved[excess:]...)
	}
	return closed
}

func (e *Evaluator) persist(ctx context.Context, opened, closed []Violation, now time.Time) {
	if e.sink == nil {
		return
	}
	for _, v := range opened {
		if err := e.sink.SaveViolation(ctx, v); err != nil {
			e.logger.Error().Err(err).Str("violation_id", v.ID).Msg("failed to persist violation")
		}
	}
	for _, v := range closed {
		if err := e.sink.CloseViolation(ctx, v.ID, now); err != nil {
			e.logger.Error().Err(err).Str("violation_id", v.ID).Msg("failed to close violation")
		}
	}
}

func (e *Evaluator) notify(ctx context.Context, msg notify.Message) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, msg); err != nil {
		e.logger.Error().Err(err).Str("service", msg.Source).Msg("sla notification failed")
	}
}

func (e *Evaluator) publish(ctx context.Context, evalID string, eventType monitor.EventType, severity notify.Severity, service string, violations []Violation) {
	if e.events == nil {
		return
	}
	event := monitor.NewEvent(evalID, eventType, severity.String())
	event.Metadata = map[string]string{
		"service":    service,
		"violations": strconv.Itoa(len(violations)),
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Error().Err(err).Str("service", service).Msg("failed to publish sla event")
	}
}

// Reports returns the latest evaluation for every service, sorted by name
func (e *Evaluator) Reports() []Report {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Report, 0, len(e.reports))
	for _, report := range e.reports {
		out = append(out, report)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// Report returns the latest evaluation for one service
func (e *Evaluator) Report(service string) (Report, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	report, ok := e.reports[service]
	return report, ok
}

// State returns the current compliance state for one service. Services never
// evaluated report Compliant.
func (e *Evaluator) State(service string) State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if state, ok := e.states[service]; ok {
		return state
	}
	return StateCompliant
}

// Violations returns violation records, newest first. With openOnly only the
// currently open records are returned.
func (e *Evaluator) Violations(openOnly bool) []Violation {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Violation, 0, len(e.resolved))
	for _, open := range e.open {
		out = append(out, open...)
	}
	if !openOnly {
		out = append(out, e.resolved...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ViolationTime.After(out[j].ViolationTime) })
	return out
}

func violationMessage(service string, opened []Violation, m Metrics, now time.Time) notify.Message {
	lines := make([]string, 0, len(opened))
	for _, v := range opened {
		lines = append(lines, v.Message)
	}
	return notify.Message{
		Subject:   fmt.Sprintf("SLA violation: %s", service),
		Body:      strings.Join(lines, "; "),
		Severity:  notify.SeverityCritical,
		Category:  notify.CategorySLA,
		Source:    service,
		Timestamp: now,
		Metadata: map[string]string{
			"availability": fmt.Sprintf("%.3f", m.Availability),
			"success_rate": fmt.Sprintf("%.3f", m.SuccessRate),
			"p95_ms":       fmt.Sprintf("%.0f", m.P95DurationMs),
			"period":       m.Period,
		},
	}
}

func recoveryMessage(service string, closed []Violation, now time.Time) notify.Message {
	earliest := closed[0].ViolationTime
	for _, v := range closed[1:] {
		if v.ViolationTime.Before(earliest) {
			earliest = v.ViolationTime
		}
	}
	return notify.Message{
		Subject:   fmt.Sprintf("SLA recovered: %s", service),
		Body:      fmt.Sprintf("all targets back within bounds after %s", now.Sub(earliest).Round(time.Second)),
		Severity:  notify.SeverityInfo,
		Category:  notify.CategorySLA,
		Source:    service,
		Timestamp: now,
	}
}

func warningMessage(service string, m Metrics, now time.Time) notify.Message {
	return notify.Message{
		Subject:   fmt.Sprintf("SLA warning: %s", service),
		Body:      "metrics approaching configured targets",
		Severity:  notify.SeverityWarning,
		Category:  notify.CategorySLA,
		Source:    service,
		Timestamp: now,
		Metadata: map[string]string{
			"availability": fmt.Sprintf("%.3f", m.Availability),
			"success_rate": fmt.Sprintf("%.3f", m.SuccessRate),
			"p95_ms":       fmt.Sprintf("%.0f", m.P95DurationMs),
		},
	}
}
