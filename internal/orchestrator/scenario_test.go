package orchestrator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/opsvigil/vigil/internal/executor/dbcheck"
	"github.com/opsvigil/vigil/internal/executor/httpcheck"
	"github.com/opsvigil/vigil/internal/metrics"
	"github.com/opsvigil/vigil/internal/monitor"
	"github.com/opsvigil/vigil/internal/notify"
	"github.com/opsvigil/vigil/internal/orchestrator"
)

// captureTransport records messages the router delivers
type captureTransport struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (t *captureTransport) Deliver(_ context.Context, _ notify.Channel, msg notify.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
	return nil
}

func (t *captureTransport) messages() []notify.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]notify.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func serveStatus(t *testing.T, code int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(server.Close)
	return server
}

// TestMonitoringRound drives one full orchestration pass over live endpoints:
// execution, metrics, the result cache and notification routing together.
func TestMonitoringRound(t *testing.T) {
	healthy1 := serveStatus(t, http.StatusOK)
	healthy2 := serveStatus(t, http.StatusOK)
	failing := serveStatus(t, http.StatusInternalServerError)

	checks := []monitor.CheckDefinition{
		{Name: "endpoint1", Type: monitor.CheckTypeHTTP, HTTP: &monitor.HTTPCheck{URL: healthy1.URL}},
		{Name: "endpoint2", Type: monitor.CheckTypeHTTP, Timeout: "2s", HTTP: &monitor.HTTPCheck{URL: healthy2.URL}},
		{Name: "endpoint3", Type: monitor.CheckTypeHTTP, HTTP: &monitor.HTTPCheck{URL: failing.URL}},
	}

	transport := &captureTransport{}
	channel := notify.Channel{
		Name:        "ops-webhook",
		Type:        notify.ChannelWebhook,
		Target:      "https://hooks.internal/vigil",
		MinSeverity: notify.SeverityWarning,
	}
	router := notify.NewRouter([]notify.Channel{channel}, zerolog.Nop(),
		notify.WithTransport(notify.ChannelWebhook, transport))

	agg := metrics.NewAggregator()
	executors := map[monitor.CheckType]orchestrator.Executor{
		monitor.CheckTypeHTTP: httpcheck.NewExecutor(nil, zerolog.Nop()),
	}
	engine := orchestrator.NewEngine(checks, executors, agg, router, zerolog.Nop())
	engine.SetMaxConcurrency(2)

	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("job failed: %v", err)
	}

	if engine.Cache().Size() != 3 {
		t.Fatalf("expected 3 cached results, got %d", engine.Cache().Size())
	}
	expected := map[string]monitor.Status{
		"endpoint1": monitor.StatusHealthy,
		"endpoint2": monitor.StatusHealthy,
		"endpoint3": monitor.StatusUnhealthy,
	}
	for name, wantStatus := range expected {
		result, exists := engine.Cache().Get(name)
		if !exists {
			t.Fatalf("missing result for %s", name)
		}
		if result.Status != wantStatus {
			t.Errorf("%s: expected %s, got %s (%s)", name, wantStatus, result.Status, result.Message)
		}
	}

	snapshot := agg.Snapshot()
	if snapshot["check.endpoint1.healthy"] != 1 {
		t.Errorf("expected check.endpoint1.healthy = 1, got %v", snapshot["check.endpoint1.healthy"])
	}
	if snapshot["check.endpoint3.unhealthy"] != 1 {
		t.Errorf("expected check.endpoint3.unhealthy = 1, got %v", snapshot["check.endpoint3.unhealthy"])
	}
	if snapshot["job.succeeded_total"] != 1 {
		t.Errorf("expected one successful job, got %v", snapshot["job.succeeded_total"])
	}

	// Only the failing endpoint clears the channel's warning floor
	msgs := transport.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(msgs))
	}
	if msgs[0].Source != "endpoint3" {
		t.Errorf("expected notification for endpoint3, got %q", msgs[0].Source)
	}
	if msgs[0].Severity != notify.SeverityWarning {
		t.Errorf("expected warning severity, got %s", msgs[0].Severity)
	}
}

// TestMonitoringRound_MixedExecutors runs HTTP and database checks in the
// same job.
func TestMonitoringRound_MixedExecutors(t *testing.T) {
	api := serveStatus(t, http.StatusOK)

	checks := []monitor.CheckDefinition{
		{Name: "api-health", Type: monitor.CheckTypeHTTP, HTTP: &monitor.HTTPCheck{URL: api.URL}},
		{
			Name: "orders-db",
			Type: monitor.CheckTypeDatabase,
			Database: &monitor.DatabaseCheck{
				Provider: "sqlite",
				DSN:      filepath.Join(t.TempDir(), "scenario.db"),
				Query:    "SELECT 1",
			},
		},
	}

	agg := metrics.NewAggregator()
	executors := map[monitor.CheckType]orchestrator.Executor{
		monitor.CheckTypeHTTP:     httpcheck.NewExecutor(nil, zerolog.Nop()),
		monitor.CheckTypeDatabase: dbcheck.NewExecutor(zerolog.Nop()),
	}
	engine := orchestrator.NewEngine(checks, executors, agg, nil, zerolog.Nop())

	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("job failed: %v", err)
	}

	for _, name := range []string{"api-health", "orders-db"} {
		result, exists := engine.Cache().Get(name)
		if !exists {
			t.Fatalf("missing result for %s", name)
		}
		if result.Status != monitor.StatusHealthy {
			t.Errorf("%s: expected healthy, got %s (%s)", name, result.Status, result.Message)
		}
	}

	snapshot := agg.Snapshot()
	if snapshot["check.orders-db.healthy"] != 1 {
		t.Errorf("expected check.orders-db.healthy = 1, got %v", snapshot["check.orders-db.healthy"])
	}
}
