// Package sqlite implements the history store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/opsvigil/vigil/internal/monitor"
	"github.com/opsvigil/vigil/internal/sla"
	"github.com/opsvigil/vigil/internal/storage"
)

// Store implements HistoryStore using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store at the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveResult persists one check result
func (s *Store) SaveResult(ctx context.Context, result monitor.CheckResult) error {
	detailsJSON, err := json.Marshal(result.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	query := `
		INSERT INTO check_results (check_name, status, message, details_json, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		result.CheckName,
		result.Status.String(),
		result.Message,
		string(detailsJSON),
		result.DurationMs,
		result.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store check result: %w", err)
	}

	return nil
}

// QueryResults retrieves stored results with optional filtering
func (s *Store) QueryResults(ctx context.Context, filter storage.ResultFilter) ([]monitor.CheckResult, error) {
	query := `
		SELECT check_name, status, message, details_json, duration_ms, timestamp
		FROM check_results
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.CheckName != "" {
		query += " AND check_name = ?"
		args = append(args, filter.CheckName)
	}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query check results: %w", err)
	}
	defer rows.Close()

	var results []monitor.CheckResult
	for rows.Next() {
		var result monitor.CheckResult
		var statusName, detailsJSON string

		err := rows.Scan(
			&result.CheckName,
			&statusName,
			&result.Message,
			&detailsJSON,
			&result.DurationMs,
			&result.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		status, err := monitor.ParseStatus(statusName)
		if err != nil {
			return nil, fmt.Errorf("failed to parse status: %w", err)
		}
		result.Status = status

		if err := json.Unmarshal([]byte(detailsJSON), &result.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}

		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return results, nil
}

// SaveViolation persists an opened SLA violation. Re-saving the same
// violation updates its mutable fields, so replays after a restart are safe.
func (s *Store) SaveViolation(ctx context.Context, v sla.Violation) error {
	query := `
		INSERT INTO sla_violations (id, service, target, message, actual_value, expected_value, violation_time, resolved_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			message = excluded.message,
			actual_value = excluded.actual_value,
			expected_value = excluded.expected_value,
			resolved_time = excluded.resolved_time
	`

	_, err := s.db.ExecContext(ctx, query,
		v.ID,
		v.Service,
		string(v.Target),
		v.Message,
		v.ActualValue,
		v.ExpectedValue,
		v.ViolationTime,
		v.ResolvedTime,
	)
	if err != nil {
		return fmt.Errorf("failed to store violation: %w", err)
	}

	return nil
}

// CloseViolation marks a stored violation resolved
func (s *Store) CloseViolation(ctx context.Context, id string, resolvedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sla_violations SET resolved_time = ? WHERE id = ? AND resolved_time IS NULL",
		resolvedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to close violation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("violation %s not found or already resolved", id)
	}

	return nil
}

// QueryViolations retrieves stored violations with optional filtering
func (s *Store) QueryViolations(ctx context.Context, filter storage.ViolationFilter) ([]sla.Violation, error) {
	query := `
		SELECT id, service, target, message, actual_value, expected_value, violation_time, resolved_time
		FROM sla_violations
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Service != "" {
		query += " AND service = ?"
		args = append(args, filter.Service)
	}

	if filter.Target != "" {
		query += " AND target = ?"
		args = append(args, filter.Target)
	}

	if filter.OpenOnly {
		query += " AND resolved_time IS NULL"
	}

	if filter.StartTime != nil {
		query += " AND violation_time >= ?"
		args = append(args, filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND violation_time <= ?"
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY violation_time DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var violations []sla.Violation
	for rows.Next() {
		var v sla.Violation
		var target string
		var resolved sql.NullTime

		err := rows.Scan(
			&v.ID,
			&v.Service,
			&target,
			&v.Message,
			&v.ActualValue,
			&v.ExpectedValue,
			&v.ViolationTime,
			&resolved,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		v.Target = sla.TargetType(target)
		if resolved.Valid {
			resolvedAt := resolved.Time
			v.ResolvedTime = &resolvedAt
		}

		violations = append(violations, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return violations, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
