// Package storage defines the persistence interface for check history and
// violation records. The monitoring core never requires it; collaborators
// wire an implementation in when durable history is wanted.
package storage

import (
	"context"
	"time"

	"github.com/opsvigil/vigil/internal/monitor"
	"github.com/opsvigil/vigil/internal/sla"
)

// HistoryStore defines the interface for persisting monitoring history
type HistoryStore interface {
	// SaveResult persists one check result
	SaveResult(ctx context.Context, result monitor.CheckResult) error

	// QueryResults retrieves stored results with optional filtering
	QueryResults(ctx context.Context, filter ResultFilter) ([]monitor.CheckResult, error)

	// SaveViolation persists an opened SLA violation
	SaveViolation(ctx context.Context, v sla.Violation) error

	// CloseViolation marks a stored violation resolved
	CloseViolation(ctx context.Context, id string, resolvedAt time.Time) error

	// QueryViolations retrieves stored violations with optional filtering
	QueryViolations(ctx context.Context, filter ViolationFilter) ([]sla.Violation, error)

	// Close closes the storage connection
	Close() error
}

// ResultFilter defines filtering options for result queries
type ResultFilter struct {
	CheckName string
	Status    string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// ViolationFilter defines filtering options for violation queries
type ViolationFilter struct {
	Service   string
	Target    string
	OpenOnly  bool
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}
