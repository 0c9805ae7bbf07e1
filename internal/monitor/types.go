package monitor

import (
	"github.com/opsvigil/vigil/internal/notify"
)

// CheckType identifies which executor runs a check
type CheckType string

const (
	CheckTypeHTTP     CheckType = "http"
	CheckTypeDatabase CheckType = "database"
)

// Operator compares a scalar query result against an expected value
type Operator string

const (
	OperatorEq  Operator = "eq"
	OperatorNeq Operator = "neq"
	OperatorGt  Operator = "gt"
	OperatorGte Operator = "gte"
	OperatorLt  Operator = "lt"
	OperatorLte Operator = "lte"
)

// Evaluate applies the operator to a measured value and an expected value
func (op Operator) Evaluate(value, expected float64) bool {
	switch op {
	case OperatorEq:
		return value == expected
	case OperatorNeq:
		return value != expected
	case OperatorGt:
		return value > expected
	case OperatorGte:
		return value >= expected
	case OperatorLt:
		return value < expected
	case OperatorLte:
		return value <= expected
	default:
		return false
	}
}

// Document represents one parsed monitoring configuration file
type Document struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Metadata   Metadata     `yaml:"metadata"`
	Spec       DocumentSpec `yaml:"spec"`
}

// Metadata contains document metadata
type Metadata struct {
	Name        string `yaml:"name"`
	Owner       string `yaml:"owner,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// DocumentSpec contains the monitoring configuration
type DocumentSpec struct {
	Engine        EngineSettings       `yaml:"engine,omitempty"`
	Checks        []CheckDefinition    `yaml:"checks,omitempty"`
	Notifications NotificationSettings `yaml:"notifications,omitempty"`
	SLA           SLASettings          `yaml:"sla,omitempty"`
}

// EngineSettings tunes the orchestrator and its trigger schedule
type EngineSettings struct {
	JobName             string `yaml:"jobName,omitempty"`
	Schedule            string `yaml:"schedule,omitempty"`
	MaxConcurrency      int    `yaml:"maxConcurrency,omitempty"`
	DefaultCheckTimeout string `yaml:"defaultCheckTimeout,omitempty"`
}

// NotificationSettings configures the notification router
type NotificationSettings struct {
	// Location is the IANA time zone used for business-hours gating.
	// Empty means the host's local zone.
	Location string           `yaml:"location,omitempty"`
	Channels []notify.Channel `yaml:"channels,omitempty"`
}

// SLASettings configures SLA evaluation
type SLASettings struct {
	EvaluationInterval string `yaml:"evaluationInterval,omitempty"`

	// WarningMargin is how close (in percentage points, or milliseconds for
	// response-time targets) a measurement may get to its target before the
	// SLA state degrades from compliant to warning.
	WarningMargin float64         `yaml:"warningMargin,omitempty"`
	Definitions   []SLADefinition `yaml:"definitions,omitempty"`
}

// CheckDefinition describes a single health check
type CheckDefinition struct {
	Name    string            `yaml:"name"`
	Type    CheckType         `yaml:"type"`
	Enabled *bool             `yaml:"enabled,omitempty"`
	Timeout string            `yaml:"timeout,omitempty"`
	Tags    map[string]string `yaml:"tags,omitempty"`

	HTTP     *HTTPCheck     `yaml:"http,omitempty"`
	Database *DatabaseCheck `yaml:"database,omitempty"`
}

// IsEnabled reports whether the check should run. Checks are enabled unless
// explicitly disabled.
func (d CheckDefinition) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// HTTPCheck holds the target of an HTTP health check
type HTTPCheck struct {
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`

	// ExpectedStatusCodes lists the response codes treated as healthy.
	// Empty means any 2xx.
	ExpectedStatusCodes []int `yaml:"expectedStatusCodes,omitempty"`
}

// DatabaseCheck holds the target of a database health check. With no query
// configured the check is a plain connectivity test.
type DatabaseCheck struct {
	Provider string `yaml:"provider"`
	DSN      string `yaml:"dsn" json:"-"`
	Query    string `yaml:"query,omitempty"`
	Params   []any  `yaml:"params,omitempty" json:"-"`

	// ExpectedValue with Operator asserts the scalar the query returns.
	ExpectedValue *float64 `yaml:"expectedValue,omitempty"`
	Operator      Operator `yaml:"operator,omitempty"`

	// Thresholds classify the scalar instead of asserting it. A value at or
	// above a threshold takes that threshold's status.
	WarningThreshold  *float64 `yaml:"warningThreshold,omitempty"`
	CriticalThreshold *float64 `yaml:"criticalThreshold,omitempty"`
}

// SLADefinition declares the service levels promised for a check
type SLADefinition struct {
	Service     string `yaml:"service"`
	Description string `yaml:"description,omitempty"`
	// Targets are optional; an unset target is not evaluated.
	AvailabilityTarget *float64 `yaml:"availabilityTarget,omitempty"`
	SuccessRateTarget  *float64 `yaml:"successRateTarget,omitempty"`
	ResponseTimeP95Ms  *float64 `yaml:"responseTimeP95Ms,omitempty"`
	MeasurementPeriod  string   `yaml:"measurementPeriod"`
}

// DocumentWithFile pairs a document with its source file path
type DocumentWithFile struct {
	Document *Document
	File     string
}

// ValidationError represents a validation error for a specific file
type ValidationError struct {
	File    string
	Path    string
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.File + ": " + e.Path + ": " + e.Message
	}
	return e.File + ": " + e.Message
}

// Config is the merged view over every loaded document. Checks, channels and
// SLA definitions accumulate across files; engine and notification settings
// come from the first document that sets them.
type Config struct {
	Engine   EngineSettings
	Location string
	Checks   []CheckDefinition
	Channels []notify.Channel
	SLA      SLASettings
}

// Merge folds a set of loaded documents into a single Config
func Merge(docs []DocumentWithFile) Config {
	var cfg Config
	for _, dw := range docs {
		spec := dw.Document.Spec
		cfg.Checks = append(cfg.Checks, spec.Checks...)
		cfg.Channels = append(cfg.Channels, spec.Notifications.Channels...)
		cfg.SLA.Definitions = append(cfg.SLA.Definitions, spec.SLA.Definitions...)

		if cfg.Engine.JobName == "" {
			cfg.Engine.JobName = spec.Engine.JobName
		}
		if cfg.Engine.Schedule == "" {
			cfg.Engine.Schedule = spec.Engine.Schedule
		}
		if cfg.Engine.MaxConcurrency == 0 {
			cfg.Engine.MaxConcurrency = spec.Engine.MaxConcurrency
		}
		if cfg.Engine.DefaultCheckTimeout == "" {
			cfg.Engine.DefaultCheckTimeout = spec.Engine.DefaultCheckTimeout
		}
		if cfg.Location == "" {
			cfg.Location = spec.Notifications.Location
		}
		if cfg.SLA.EvaluationInterval == "" {
			cfg.SLA.EvaluationInterval = spec.SLA.EvaluationInterval
		}
		if cfg.SLA.WarningMargin == 0 {
			cfg.SLA.WarningMargin = spec.SLA.WarningMargin
		}
	}
	return cfg
}

// EnabledChecks returns the checks that should run
func (c Config) EnabledChecks() []CheckDefinition {
	enabled := make([]CheckDefinition, 0, len(c.Checks))
	for _, check := range c.Checks {
		if check.IsEnabled() {
			enabled = append(enabled, check)
		}
	}
	return enabled
}
