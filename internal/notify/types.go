package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Severity orders notifications by urgency
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

var severityNames = [...]string{"info", "warning", "critical"}

// ParseSeverity converts a severity name into a Severity
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", name)
}

// String returns the severity name
func (s Severity) String() string {
	if s < SeverityInfo || s > SeverityCritical {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// MarshalJSON encodes the severity as its name
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity from its name
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML encodes the severity as its name
func (s Severity) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML decodes a severity from its name
func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ChannelType identifies the transport a channel delivers through
type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelSlack   ChannelType = "slack"
	ChannelTeams   ChannelType = "teams"
	ChannelWebhook ChannelType = "webhook"
)

// Well-known message categories
const (
	CategoryCheck = "check"
	CategoryJob   = "job"
	CategorySLA   = "sla"
	CategoryTest  = "test"
)

// Channel is a configured notification destination with its filters.
// Target and Email carry webhook URLs and credentials and are excluded from
// JSON so API responses cannot leak them.
type Channel struct {
	Name              string          `yaml:"name"`
	Type              ChannelType     `yaml:"type"`
	Target            string          `yaml:"target,omitempty" json:"-"`
	MinSeverity       Severity        `yaml:"minSeverity,omitempty"`
	BusinessHoursOnly bool            `yaml:"businessHoursOnly,omitempty"`
	Categories        []string        `yaml:"categories,omitempty"`
	Enabled           *bool           `yaml:"enabled,omitempty"`
	RateLimit         RateLimitPolicy `yaml:"rateLimit,omitempty"`
	Email             *EmailSettings  `yaml:"email,omitempty" json:"-"`
}

// IsEnabled reports whether the channel should receive notifications.
// Channels are enabled unless explicitly disabled.
func (c Channel) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// RateLimitPolicy bounds how many notifications a channel may receive.
// Zero values mean unlimited.
type RateLimitPolicy struct {
	PerMinute int `yaml:"perMinute,omitempty"`
	PerHour   int `yaml:"perHour,omitempty"`
	Burst     int `yaml:"burst,omitempty"`
}

// EmailSettings configures SMTP delivery for an email channel
type EmailSettings struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port,omitempty"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
}

// Addr returns the SMTP host:port, defaulting the port to 25
func (e EmailSettings) Addr() string {
	port := e.Port
	if port == 0 {
		port = 25
	}
	return fmt.Sprintf("%s:%d", e.Host, port)
}

// Message is a notification to be routed to matching channels
type Message struct {
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Severity  Severity          `json:"severity"`
	Category  string            `json:"category,omitempty"`
	Source    string            `json:"source,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
