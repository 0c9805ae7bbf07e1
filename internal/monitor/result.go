package monitor

import "time"

// CheckResult is the outcome of one check execution
type CheckResult struct {
	CheckName  string            `json:"checkName"`
	Status     Status            `json:"status"`
	Message    string            `json:"message,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	DurationMs int64             `json:"durationMs"`
}

// NewCheckResult builds a result stamped with the current time. Durations are
// clamped to zero so a result never reports negative elapsed time, even on
// error paths where the clock was read before any work happened.
func NewCheckResult(name string, status Status, message string, durationMs int64) CheckResult {
	if durationMs < 0 {
		durationMs = 0
	}
	return CheckResult{
		CheckName:  name,
		Status:     status,
		Message:    message,
		Timestamp:  time.Now().UTC(),
		DurationMs: durationMs,
	}
}

// WithDetail returns a copy of the result with one detail entry added.
// Details must never contain credentials or connection strings.
func (r CheckResult) WithDetail(key, value string) CheckResult {
	details := make(map[string]string, len(r.Details)+1)
	for k, v := range r.Details {
		details[k] = v
	}
	details[key] = value
	r.Details = details
	return r
}
