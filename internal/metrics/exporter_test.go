package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opsvigil/vigil/internal/monitor"
)

func TestPromName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"heartbeat_total", "vigil_heartbeat_total"},
		{"job.started_total", "vigil_job_started_total"},
		{"check.api-health.duration_ms.avg", "vigil_check_api_health_duration_ms_avg"},
		{"uptime_seconds", "vigil_uptime_seconds"},
	}

	for _, tt := range tests {
		if got := promName(tt.key); got != tt.want {
			t.Errorf("promName(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestExporter_Collect(t *testing.T) {
	agg := NewAggregator()
	agg.RecordHeartbeat()
	agg.RecordCheckResult("api-health", monitor.StatusHealthy, 25)

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewExporter(agg))

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	values := make(map[string]float64, len(families))
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			values[fam.GetName()] = m.GetGauge().GetValue()
		}
	}

	if values["vigil_heartbeat_total"] != 1 {
		t.Errorf("expected vigil_heartbeat_total = 1, got %v", values["vigil_heartbeat_total"])
	}
	if values["vigil_check_api_health_total"] != 1 {
		t.Errorf("expected vigil_check_api_health_total = 1, got %v", values["vigil_check_api_health_total"])
	}
	if values["vigil_check_api_health_healthy"] != 1 {
		t.Errorf("expected vigil_check_api_health_healthy = 1, got %v", values["vigil_check_api_health_healthy"])
	}
	if values["vigil_check_api_health_duration_ms_avg"] != 25 {
		t.Errorf("expected duration gauge 25, got %v", values["vigil_check_api_health_duration_ms_avg"])
	}
	if _, ok := values["vigil_uptime_seconds"]; !ok {
		t.Error("expected vigil_uptime_seconds to be exported")
	}
}
