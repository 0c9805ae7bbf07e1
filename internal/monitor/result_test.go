package monitor

import (
	"testing"
	"time"
)

func TestNewCheckResult(t *testing.T) {
	before := time.Now().UTC()
	result := NewCheckResult("api-health", StatusHealthy, "endpoint returned 200", 42)
	after := time.Now().UTC()

	if result.CheckName != "api-health" {
		t.Errorf("expected CheckName=api-health, got %s", result.CheckName)
	}
	if result.Status != StatusHealthy {
		t.Errorf("expected StatusHealthy, got %v", result.Status)
	}
	if result.DurationMs != 42 {
		t.Errorf("expected DurationMs=42, got %d", result.DurationMs)
	}
	if result.Timestamp.Before(before) || result.Timestamp.After(after) {
		t.Errorf("timestamp %v outside [%v, %v]", result.Timestamp, before, after)
	}
}

func TestNewCheckResult_ClampsNegativeDuration(t *testing.T) {
	result := NewCheckResult("api-health", StatusError, "request failed", -17)

	if result.DurationMs != 0 {
		t.Errorf("expected negative duration clamped to 0, got %d", result.DurationMs)
	}
	if result.Timestamp.IsZero() {
		t.Error("expected timestamp to be set on error results")
	}
}

func TestCheckResult_WithDetail(t *testing.T) {
	base := NewCheckResult("api-health", StatusHealthy, "ok", 10)

	withURL := base.WithDetail("url", "http://example.test/health")
	withBoth := withURL.WithDetail("method", "GET")

	if len(base.Details) != 0 {
		t.Errorf("expected original result untouched, got details %v", base.Details)
	}
	if len(withURL.Details) != 1 {
		t.Errorf("expected 1 detail, got %d", len(withURL.Details))
	}
	if withBoth.Details["url"] != "http://example.test/health" || withBoth.Details["method"] != "GET" {
		t.Errorf("unexpected details: %v", withBoth.Details)
	}

	// Adding a detail to the derived copy must not leak into the earlier one
	if _, ok := withURL.Details["method"]; ok {
		t.Error("expected WithDetail to copy the details map")
	}
}
