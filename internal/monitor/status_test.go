package monitor

import (
	"encoding/json"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{"healthy", StatusHealthy, false},
		{"warning", StatusWarning, false},
		{"unhealthy", StatusUnhealthy, false},
		{"critical", StatusCritical, false},
		{"error", StatusError, false},
		{"unknown", StatusUnknown, false},
		{"HEALTHY", StatusUnknown, true},
		{"", StatusUnknown, true},
		{"bogus", StatusUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseStatus(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStatus_Ordering(t *testing.T) {
	ordered := []Status{StatusUnknown, StatusHealthy, StatusWarning, StatusUnhealthy, StatusCritical, StatusError}

	for i := 1; i < len(ordered); i++ {
		if !ordered[i].WorseThan(ordered[i-1]) {
			t.Errorf("expected %s to be worse than %s", ordered[i], ordered[i-1])
		}
		if ordered[i-1].WorseThan(ordered[i]) {
			t.Errorf("expected %s not to be worse than %s", ordered[i-1], ordered[i])
		}
	}

	if StatusHealthy.WorseThan(StatusHealthy) {
		t.Error("a status must not be worse than itself")
	}
}

func TestStatus_Classification(t *testing.T) {
	tests := []struct {
		status    Status
		isSuccess bool
		isFailure bool
	}{
		{StatusHealthy, true, false},
		{StatusWarning, true, false},
		{StatusUnhealthy, false, true},
		{StatusCritical, false, true},
		{StatusError, false, true},
		{StatusUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.IsSuccess(); got != tt.isSuccess {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.isSuccess)
			}
			if got := tt.status.IsFailure(); got != tt.isFailure {
				t.Errorf("IsFailure() = %v, want %v", got, tt.isFailure)
			}
		})
	}
}

func TestWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusUnknown},
		{"single", []Status{StatusHealthy}, StatusHealthy},
		{"healthy wins over unknown", []Status{StatusUnknown, StatusHealthy}, StatusHealthy},
		{"error dominates", []Status{StatusHealthy, StatusError, StatusWarning}, StatusError},
		{"critical over unhealthy", []Status{StatusUnhealthy, StatusCritical}, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WorstStatus(tt.statuses...); got != tt.want {
				t.Errorf("WorstStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(StatusCritical)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `"critical"` {
		t.Errorf("expected %q, got %s", "critical", data)
	}

	var s Status
	if err := json.Unmarshal([]byte(`"warning"`), &s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if s != StatusWarning {
		t.Errorf("expected StatusWarning, got %v", s)
	}

	if err := json.Unmarshal([]byte(`"bogus"`), &s); err == nil {
		t.Error("expected error for unknown status name")
	}
}

func TestStatus_ZeroValue(t *testing.T) {
	var s Status
	if s.String() != "unknown" {
		t.Errorf("zero value String() = %q, want %q", s.String(), "unknown")
	}
	if s != StatusUnknown {
		t.Error("zero value should equal StatusUnknown")
	}
}
