package notify

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields,omitempty"`
	Ts     int64        `json:"ts"`
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

// FormatSlack renders a message as a Slack incoming-webhook payload
func FormatSlack(msg Message) ([]byte, error) {
	fields := make([]slackField, 0, len(msg.Metadata)+1)
	if msg.Source != "" {
		fields = append(fields, slackField{Title: "Source", Value: msg.Source, Short: true})
	}
	for _, key := range sortedKeys(msg.Metadata) {
		fields = append(fields, slackField{Title: key, Value: msg.Metadata[key], Short: true})
	}

	payload := slackPayload{
		Text: msg.Subject,
		Attachments: []slackAttachment{{
			Color:  slackColor(msg.Severity),
			Title:  msg.Subject,
			Text:   msg.Body,
			Fields: fields,
			Ts:     msg.Timestamp.Unix(),
		}},
	}
	return json.Marshal(payload)
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type teamsSection struct {
	ActivityTitle string      `json:"activityTitle"`
	Text          string      `json:"text"`
	Facts         []teamsFact `json:"facts,omitempty"`
}

type teamsPayload struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Sections   []teamsSection `json:"sections"`
}

// FormatTeams renders a message as a Microsoft Teams MessageCard
func FormatTeams(msg Message) ([]byte, error) {
	facts := []teamsFact{
		{Name: "Severity", Value: msg.Severity.String()},
		{Name: "Time", Value: msg.Timestamp.Format("2006-01-02 15:04:05 MST")},
	}
	if msg.Source != "" {
		facts = append(facts, teamsFact{Name: "Source", Value: msg.Source})
	}
	for _, key := range sortedKeys(msg.Metadata) {
		facts = append(facts, teamsFact{Name: key, Value: msg.Metadata[key]})
	}

	payload := teamsPayload{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: teamsColor(msg.Severity),
		Summary:    msg.Subject,
		Sections: []teamsSection{{
			ActivityTitle: msg.Subject,
			Text:          msg.Body,
			Facts:         facts,
		}},
	}
	return json.Marshal(payload)
}

// FormatWebhook renders a message as a generic JSON document
func FormatWebhook(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// FormatEmail renders a message as an RFC 5322 mail with plain-text body
func FormatEmail(msg Message, from string, to []string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", strings.ToUpper(msg.Severity.String()), msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	if msg.Source != "" {
		fmt.Fprintf(&b, "\r\nSource: %s\r\n", msg.Source)
	}
	for _, key := range sortedKeys(msg.Metadata) {
		fmt.Fprintf(&b, "%s: %s\r\n", key, msg.Metadata[key])
	}
	fmt.Fprintf(&b, "Sent: %s\r\n", msg.Timestamp.Format("2006-01-02 15:04:05 MST"))
	return []byte(b.String())
}

func slackColor(s Severity) string {
	switch s {
	case SeverityCritical:
		return "danger"
	case SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}

func teamsColor(s Severity) string {
	switch s {
	case SeverityCritical:
		return "D93025"
	case SeverityWarning:
		return "F5A623"
	default:
		return "36A64F"
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
