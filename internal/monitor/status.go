package monitor

import (
	"encoding/json"
	"fmt"
)

// Status classifies the outcome of a single check execution. Statuses are
// ordered by severity: a higher rank is strictly worse. The zero value is
// StatusUnknown.
type Status struct {
	name string
	rank int
}

// Ranks are spaced so a new status can be inserted between two existing ones
// without renumbering.
var (
	StatusUnknown   = Status{}
	StatusHealthy   = Status{name: "healthy", rank: 10}
	StatusWarning   = Status{name: "warning", rank: 20}
	StatusUnhealthy = Status{name: "unhealthy", rank: 30}
	StatusCritical  = Status{name: "critical", rank: 40}
	StatusError     = Status{name: "error", rank: 50}
)

var statusByName = map[string]Status{
	"unknown":   StatusUnknown,
	"healthy":   StatusHealthy,
	"warning":   StatusWarning,
	"unhealthy": StatusUnhealthy,
	"critical":  StatusCritical,
	"error":     StatusError,
}

// ParseStatus converts a status name into a Status
func ParseStatus(name string) (Status, error) {
	if s, ok := statusByName[name]; ok {
		return s, nil
	}
	return StatusUnknown, fmt.Errorf("unknown status %q", name)
}

// String returns the status name
func (s Status) String() string {
	if s.name == "" {
		return "unknown"
	}
	return s.name
}

// Rank returns the severity rank. Higher is worse.
func (s Status) Rank() int {
	return s.rank
}

// WorseThan reports whether s is strictly more severe than other
func (s Status) WorseThan(other Status) bool {
	return s.rank > other.rank
}

// IsSuccess reports whether the check found the target serving traffic.
// Warning counts as success: the target responded, merely degraded.
func (s Status) IsSuccess() bool {
	return s.rank == StatusHealthy.rank || s.rank == StatusWarning.rank
}

// IsFailure reports whether the check found the target down or broken
func (s Status) IsFailure() bool {
	return s.rank >= StatusUnhealthy.rank
}

// WorstStatus returns the most severe of the given statuses, or StatusUnknown
// when none are given
func WorstStatus(statuses ...Status) Status {
	worst := StatusUnknown
	for _, s := range statuses {
		if s.WorseThan(worst) {
			worst = s
		}
	}
	return worst
}

// MarshalJSON encodes the status as its name
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status from its name
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
