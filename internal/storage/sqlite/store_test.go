package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opsvigil/vigil/internal/monitor"
	"github.com/opsvigil/vigil/internal/sla"
	"github.com/opsvigil/vigil/internal/storage"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var storeBase = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func resultAt(name string, status monitor.Status, at time.Time) monitor.CheckResult {
	return monitor.CheckResult{
		CheckName:  name,
		Status:     status,
		Message:    "probe outcome",
		Timestamp:  at,
		DurationMs: 12,
	}
}

func TestStore_SaveAndQueryResults(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	first := resultAt("api-health", monitor.StatusHealthy, storeBase)
	first.Details = map[string]string{"url": "http://api.internal/health", "status_code": "200"}
	second := resultAt("api-health", monitor.StatusUnhealthy, storeBase.Add(time.Minute))
	third := resultAt("orders-db", monitor.StatusHealthy, storeBase.Add(2*time.Minute))

	for _, result := range []monitor.CheckResult{first, second, third} {
		if err := store.SaveResult(ctx, result); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	results, err := store.QueryResults(ctx, storage.ResultFilter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// Newest first
	if results[0].CheckName != "orders-db" || results[2].CheckName != "api-health" {
		t.Errorf("expected timestamp-descending order, got %s, %s, %s",
			results[0].CheckName, results[1].CheckName, results[2].CheckName)
	}

	// Details survive the round trip
	last := results[2]
	if last.Details["url"] != "http://api.internal/health" {
		t.Errorf("expected details restored, got %v", last.Details)
	}
	if last.Status != monitor.StatusHealthy {
		t.Errorf("expected status restored, got %s", last.Status)
	}
	if !last.Timestamp.Equal(storeBase) {
		t.Errorf("expected timestamp %v, got %v", storeBase, last.Timestamp)
	}
}

func TestStore_QueryResults_Filters(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seed := []monitor.CheckResult{
		resultAt("api-health", monitor.StatusHealthy, storeBase),
		resultAt("api-health", monitor.StatusUnhealthy, storeBase.Add(time.Minute)),
		resultAt("orders-db", monitor.StatusHealthy, storeBase.Add(2*time.Minute)),
		resultAt("orders-db", monitor.StatusCritical, storeBase.Add(3*time.Minute)),
	}
	for _, result := range seed {
		if err := store.SaveResult(ctx, result); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	byName, err := store.QueryResults(ctx, storage.ResultFilter{CheckName: "api-health"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(byName) != 2 {
		t.Errorf("expected 2 api-health results, got %d", len(byName))
	}

	byStatus, err := store.QueryResults(ctx, storage.ResultFilter{Status: "healthy"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(byStatus) != 2 {
		t.Errorf("expected 2 healthy results, got %d", len(byStatus))
	}

	limited, err := store.QueryResults(ctx, storage.ResultFilter{Limit: 1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 result, got %d", len(limited))
	}
	if limited[0].CheckName != "orders-db" || limited[0].Status != monitor.StatusCritical {
		t.Errorf("limit must keep the newest result, got %+v", limited[0])
	}

	offset, err := store.QueryResults(ctx, storage.ResultFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(offset) != 2 || offset[0].CheckName != "api-health" {
		t.Errorf("unexpected page: %+v", offset)
	}

	windowStart := storeBase.Add(30 * time.Second)
	windowEnd := storeBase.Add(2 * time.Minute)
	windowed, err := store.QueryResults(ctx, storage.ResultFilter{StartTime: &windowStart, EndTime: &windowEnd})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(windowed) != 2 {
		t.Errorf("expected 2 results in window, got %d", len(windowed))
	}
}

func openViolation(id, service string, target sla.TargetType, at time.Time) sla.Violation {
	return sla.Violation{
		ID:            id,
		Service:       service,
		Target:        target,
		Message:       "availability 99.000% below target 99.900%",
		ActualValue:   99.0,
		ExpectedValue: 99.9,
		ViolationTime: at,
	}
}

func TestStore_SaveAndQueryViolations(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	v := openViolation("v-1", "checkout", sla.TargetAvailability, storeBase)
	if err := store.SaveViolation(ctx, v); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	violations, err := store.QueryViolations(ctx, storage.ViolationFilter{OpenOnly: true})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 open violation, got %d", len(violations))
	}

	got := violations[0]
	if got.ID != "v-1" || got.Service != "checkout" || got.Target != sla.TargetAvailability {
		t.Errorf("unexpected violation: %+v", got)
	}
	if got.ActualValue != 99.0 || got.ExpectedValue != 99.9 {
		t.Errorf("expected values restored, got %+v", got)
	}
	if got.Resolved() {
		t.Error("open violation must not report resolved")
	}
	if !got.ViolationTime.Equal(storeBase) {
		t.Errorf("expected violation time %v, got %v", storeBase, got.ViolationTime)
	}
}

func TestStore_CloseViolation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.SaveViolation(ctx, openViolation("v-1", "checkout", sla.TargetAvailability, storeBase)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	resolvedAt := storeBase.Add(10 * time.Minute)
	if err := store.CloseViolation(ctx, "v-1", resolvedAt); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	open, err := store.QueryViolations(ctx, storage.ViolationFilter{OpenOnly: true})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("expected no open violations, got %d", len(open))
	}

	all, err := store.QueryViolations(ctx, storage.ViolationFilter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(all))
	}
	if !all[0].Resolved() || !all[0].ResolvedTime.Equal(resolvedAt) {
		t.Errorf("expected resolution at %v, got %+v", resolvedAt, all[0])
	}

	// Closing again must fail: the record is already resolved
	err = store.CloseViolation(ctx, "v-1", resolvedAt.Add(time.Minute))
	if err == nil {
		t.Fatal("expected error on double close")
	}
	if !strings.Contains(err.Error(), "not found or already resolved") {
		t.Errorf("unexpected error %q", err.Error())
	}

	if err := store.CloseViolation(ctx, "missing", resolvedAt); err == nil {
		t.Error("expected error for unknown violation id")
	}
}

func TestStore_SaveViolation_Upsert(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	v := openViolation("v-1", "checkout", sla.TargetAvailability, storeBase)
	if err := store.SaveViolation(ctx, v); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	v.Message = "availability 97.500% below target 99.900%"
	v.ActualValue = 97.5
	if err := store.SaveViolation(ctx, v); err != nil {
		t.Fatalf("re-save failed: %v", err)
	}

	violations, err := store.QueryViolations(ctx, storage.ViolationFilter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected upsert to keep one record, got %d", len(violations))
	}
	if violations[0].Message != v.Message || violations[0].ActualValue != 97.5 {
		t.Errorf("expected updated fields, got %+v", violations[0])
	}
}

func TestStore_QueryViolations_Filters(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	seed := []sla.Violation{
		openViolation("v-1", "checkout", sla.TargetAvailability, storeBase),
		openViolation("v-2", "checkout", sla.TargetResponseTime, storeBase.Add(time.Minute)),
		openViolation("v-3", "search", sla.TargetAvailability, storeBase.Add(2*time.Minute)),
	}
	for _, v := range seed {
		if err := store.SaveViolation(ctx, v); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	byService, err := store.QueryViolations(ctx, storage.ViolationFilter{Service: "checkout"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(byService) != 2 {
		t.Errorf("expected 2 checkout violations, got %d", len(byService))
	}

	byTarget, err := store.QueryViolations(ctx, storage.ViolationFilter{Target: string(sla.TargetAvailability)})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(byTarget) != 2 {
		t.Errorf("expected 2 availability violations, got %d", len(byTarget))
	}

	// Newest first
	all, err := store.QueryViolations(ctx, storage.ViolationFilter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "v-3" || all[2].ID != "v-1" {
		t.Errorf("expected violation-time-descending order, got %+v", all)
	}
}
