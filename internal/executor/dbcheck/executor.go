// Package dbcheck probes SQL databases through database/sql. A check either
// validates connectivity or runs a scalar query and classifies the value.
package dbcheck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/opsvigil/vigil/internal/monitor"
)

// drivers maps configuration provider names onto database/sql driver names
var drivers = map[string]string{
	"postgres": "postgres",
	"sqlite":   "sqlite3",
}

// versionQueries identify the server in connection-test mode
var versionQueries = map[string]string{
	"postgres": "SELECT version()",
	"sqlite":   "SELECT 'SQLite ' || sqlite_version()",
}

// Executor runs database health checks
type Executor struct {
	logger zerolog.Logger
}

// NewExecutor creates a database check executor
func NewExecutor(logger zerolog.Logger) *Executor {
	return &Executor{
		logger: logger.With().Str("component", "dbcheck").Logger(),
	}
}

// Execute connects to the configured database and runs the check. It always
// returns a result; driver errors surface as StatusError with the connection
// string scrubbed from the message.
func (e *Executor) Execute(ctx context.Context, def monitor.CheckDefinition) monitor.CheckResult {
	start := time.Now()

	target := def.Database
	if target == nil {
		return monitor.NewCheckResult(def.Name, monitor.StatusError, "check has no database block", 0)
	}

	driver, ok := drivers[target.Provider]
	if !ok {
		return monitor.NewCheckResult(def.Name, monitor.StatusError,
			fmt.Sprintf("unsupported provider %q", target.Provider), 0)
	}

	db, err := sql.Open(driver, target.DSN)
	if err != nil {
		return e.errorResult(def, "database open", err, time.Since(start).Milliseconds())
	}
	defer db.Close()

	if target.Query == "" {
		return e.connectionTest(ctx, db, def, start)
	}
	return e.queryTest(ctx, db, def, start)
}

// connectionTest pings the server and reads its version string
func (e *Executor) connectionTest(ctx context.Context, db *sql.DB, def monitor.CheckDefinition, start time.Time) monitor.CheckResult {
	target := def.Database

	if err := db.PingContext(ctx); err != nil {
		return e.errorResult(def, "connection test", err, time.Since(start).Milliseconds())
	}

	var version string
	if err := db.QueryRowContext(ctx, versionQueries[target.Provider]).Scan(&version); err != nil {
		return e.errorResult(def, "server probe", err, time.Since(start).Milliseconds())
	}

	durationMs := time.Since(start).Milliseconds()
	e.logger.Debug().
		Str("check", def.Name).
		Str("provider", target.Provider).
		Int64("duration_ms", durationMs).
		Msg("database check complete")

	result := monitor.NewCheckResult(def.Name, monitor.StatusHealthy,
		fmt.Sprintf("connected to %s", version), durationMs)
	return result.
		WithDetail("provider", target.Provider).
		WithDetail("server_version", version)
}

// queryTest runs the configured query and classifies its scalar result
func (e *Executor) queryTest(ctx context.Context, db *sql.DB, def monitor.CheckDefinition, start time.Time) monitor.CheckResult {
	target := def.Database

	var raw any
	if err := db.QueryRowContext(ctx, target.Query, target.Params...).Scan(&raw); err != nil {
		return e.errorResult(def, "query", err, time.Since(start).Milliseconds())
	}

	value, err := coerceScalar(raw)
	if err != nil {
		return e.errorResult(def, "query", err, time.Since(start).Milliseconds())
	}

	durationMs := time.Since(start).Milliseconds()
	status, message := Classify(value, target)
	e.logger.Debug().
		Str("check", def.Name).
		Str("provider", target.Provider).
		Float64("value", value).
		Str("status", status.String()).
		Int64("duration_ms", durationMs).
		Msg("database check complete")

	result := monitor.NewCheckResult(def.Name, status, message, durationMs)
	return result.
		WithDetail("provider", target.Provider).
		WithDetail("value", strconv.FormatFloat(value, 'f', -1, 64))
}

// Classify maps a scalar query result onto a status using the check's
// operator comparison or its thresholds. Threshold comparisons are
// inclusive: a value equal to a threshold takes that threshold's status.
func Classify(value float64, target *monitor.DatabaseCheck) (monitor.Status, string) {
	if target.ExpectedValue != nil && target.Operator != "" {
		if target.Operator.Evaluate(value, *target.ExpectedValue) {
			return monitor.StatusHealthy,
				fmt.Sprintf("query returned %g (%s %g)", value, target.Operator, *target.ExpectedValue)
		}
		return monitor.StatusUnhealthy,
			fmt.Sprintf("query returned %g, want %s %g", value, target.Operator, *target.ExpectedValue)
	}

	if target.CriticalThreshold != nil && value >= *target.CriticalThreshold {
		return monitor.StatusCritical,
			fmt.Sprintf("value %g at or above critical threshold %g", value, *target.CriticalThreshold)
	}
	if target.WarningThreshold != nil && value >= *target.WarningThreshold {
		return monitor.StatusWarning,
			fmt.Sprintf("value %g at or above warning threshold %g", value, *target.WarningThreshold)
	}
	return monitor.StatusHealthy, fmt.Sprintf("query returned %g", value)
}

// coerceScalar converts a driver value into a float64
func coerceScalar(raw any) (float64, error) {
	switch v := raw.(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	case nil:
		return 0, errors.New("query returned NULL")
	default:
		return 0, fmt.Errorf("unsupported scalar type %T", raw)
	}
}

// errorResult wraps a failure into an Error result. Driver errors can echo
// connection details, so the DSN is scrubbed before the message is built.
// No partial query value is ever attached.
func (e *Executor) errorResult(def monitor.CheckDefinition, operation string, err error, durationMs int64) monitor.CheckResult {
	var message string
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = fmt.Sprintf("%s timed out after %dms", operation, durationMs)
	case errors.Is(err, context.Canceled):
		message = "check cancelled"
	default:
		message = fmt.Sprintf("%s failed: %s", operation, scrub(err.Error(), def.Database))
	}

	e.logger.Debug().
		Str("check", def.Name).
		Str("operation", operation).
		Msg(message)

	result := monitor.NewCheckResult(def.Name, monitor.StatusError, message, durationMs)
	if def.Database != nil {
		result = result.WithDetail("provider", def.Database.Provider)
	}
	return result
}

// scrub removes the configured DSN from driver error text so connection
// strings never reach messages, logs or stored results
func scrub(text string, target *monitor.DatabaseCheck) string {
	if target == nil || target.DSN == "" {
		return text
	}
	return strings.ReplaceAll(text, target.DSN, "[redacted]")
}
