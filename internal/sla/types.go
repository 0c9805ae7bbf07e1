// Package sla evaluates service-level agreements against the metrics the
// monitoring runs produce, tracking per-service compliance state and the
// lifecycle of violation records.
package sla

import "time"

// State classifies a service's current compliance posture
type State string

const (
	StateCompliant State = "compliant"
	StateWarning   State = "warning"
	StateViolation State = "violation"
)

// TargetType identifies which agreement target a violation breached
type TargetType string

const (
	TargetAvailability TargetType = "availability"
	TargetSuccessRate  TargetType = "success_rate"
	TargetResponseTime TargetType = "response_time_p95"
)

// Metrics holds the figures computed for one service over one measurement
// period
type Metrics struct {
	Service          string    `json:"service"`
	Period           string    `json:"period"`
	Availability     float64   `json:"availability"`
	SuccessRate      float64   `json:"successRate"`
	AvgDurationMs    float64   `json:"avgDurationMs"`
	P95DurationMs    float64   `json:"p95DurationMs"`
	P99DurationMs    float64   `json:"p99DurationMs"`
	TotalChecks      int64     `json:"totalChecks"`
	SuccessfulChecks int64     `json:"successfulChecks"`
	FailedChecks     int64     `json:"failedChecks"`
	CalculatedAt     time.Time `json:"calculatedAt"`
}

// Violation records one breach of an agreement target. It stays open until a
// later evaluation of the same service is compliant.
type Violation struct {
	ID            string     `json:"id"`
	Service       string     `json:"service"`
	Target        TargetType `json:"target"`
	Message       string     `json:"message"`
	ActualValue   float64    `json:"actualValue"`
	ExpectedValue float64    `json:"expectedValue"`
	ViolationTime time.Time  `json:"violationTime"`
	ResolvedTime  *time.Time `json:"resolvedTime,omitempty"`
}

// Resolved reports whether the violation has been closed
func (v Violation) Resolved() bool {
	return v.ResolvedTime != nil
}

// Report is the latest evaluation outcome for one service. Violations holds
// the records still open at evaluation time.
type Report struct {
	Service    string      `json:"service"`
	State      State       `json:"state"`
	Metrics    Metrics     `json:"metrics"`
	Violations []Violation `json:"violations,omitempty"`
}
