package api

import (
	"github.com/opsvigil/vigil/internal/metrics"
	"github.com/opsvigil/vigil/internal/monitor"
	"github.com/opsvigil/vigil/internal/sla"
)

// CheckView pairs a check definition with its most recent result
type CheckView struct {
	Name       string               `json:"name"`
	Type       monitor.CheckType    `json:"type"`
	Enabled    bool                 `json:"enabled"`
	Tags       map[string]string    `json:"tags,omitempty"`
	LastResult *monitor.CheckResult `json:"lastResult,omitempty"`
}

// ChecksResponse lists configured checks
type ChecksResponse struct {
	Checks []CheckView `json:"checks"`
	Total  int         `json:"total"`
}

// ResultsResponse lists stored check results
type ResultsResponse struct {
	Results []monitor.CheckResult `json:"results"`
	Total   int                   `json:"total"`
}

// SLAResponse lists the latest evaluation per service
type SLAResponse struct {
	Reports []sla.Report `json:"reports"`
}

// ViolationsResponse lists violation records
type ViolationsResponse struct {
	Violations []sla.Violation `json:"violations"`
	Total      int             `json:"total"`
}

// MetricsResponse pairs the derived summary with the raw counter snapshot
type MetricsResponse struct {
	Summary  metrics.Summary    `json:"summary"`
	Counters map[string]float64 `json:"counters"`
}

// ChannelTestRequest names the channel to test
type ChannelTestRequest struct {
	Channel string `json:"channel"`
}

// ChannelTestResponse reports the outcome of a channel test
type ChannelTestResponse struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Ready        bool     `json:"ready"`
	ChecksLoaded int      `json:"checksLoaded"`
	Reasons      []string `json:"reasons,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
