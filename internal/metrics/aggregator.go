package metrics

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opsvigil/vigil/internal/monitor"
)

// sampleWindow bounds how many recent duration samples each check key keeps
// for percentile queries.
const sampleWindow = 1024

var keyPattern = regexp.MustCompile(`[^a-z0-9_-]+`)

// SanitizeKey normalizes a check name into a metric key: lower-cased with
// every character outside [a-z0-9_-] removed. The mapping is stable, so the
// same name always lands on the same key.
func SanitizeKey(name string) (string, error) {
	key := keyPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "")
	if key == "" {
		return "", fmt.Errorf("cannot derive metric key from %q", name)
	}
	return key, nil
}

// bucket accumulates counters for one metric key. Each bucket carries its own
// lock so recording results for unrelated checks never contends.
type bucket struct {
	mu       sync.Mutex
	total    int64
	success  int64
	failure  int64
	statuses map[string]int64
	sumMs    int64
	samples  []float64
	next     int
}

// Aggregator collects check outcomes and job lifecycle counters. All methods
// are safe for concurrent use.
type Aggregator struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	started time.Time

	heartbeats    atomic.Int64
	jobsStarted   atomic.Int64
	jobsSucceeded atomic.Int64
	jobsFailed    atomic.Int64
	jobsCancelled atomic.Int64
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		buckets: make(map[string]*bucket),
		started: time.Now(),
	}
}

// RecordHeartbeat counts one scheduler heartbeat
func (a *Aggregator) RecordHeartbeat() { a.heartbeats.Add(1) }

// RecordJobStart counts one orchestration run starting
func (a *Aggregator) RecordJobStart() { a.jobsStarted.Add(1) }

// RecordJobSuccess counts one orchestration run completing
func (a *Aggregator) RecordJobSuccess() { a.jobsSucceeded.Add(1) }

// RecordJobFailure counts one orchestration run failing outright
func (a *Aggregator) RecordJobFailure() { a.jobsFailed.Add(1) }

// RecordJobCancellation counts one orchestration run cancelled mid-flight
func (a *Aggregator) RecordJobCancellation() { a.jobsCancelled.Add(1) }

// RecordCheckResult folds one check outcome into the counters for its key.
// Names that cannot be sanitized into a key are rejected rather than
// silently recorded.
func (a *Aggregator) RecordCheckResult(name string, status monitor.Status, durationMs int64) error {
	key, err := SanitizeKey(name)
	if err != nil {
		return err
	}
	if durationMs < 0 {
		durationMs = 0
	}

	b := a.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	b.sumMs += durationMs
	b.statuses[status.String()]++
	if status.IsSuccess() {
		b.success++
	} else if status.IsFailure() {
		b.failure++
	}

	if len(b.samples) < sampleWindow {
		b.samples = append(b.samples, float64(durationMs))
	} else {
		b.samples[b.next] = float64(durationMs)
		b.next = (b.next + 1) % sampleWindow
	}
	return nil
}

func (a *Aggregator) bucket(key string) *bucket {
	a.mu.RLock()
	b, ok := a.buckets[key]
	a.mu.RUnlock()
	if ok {
		return b
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok := a.buckets[key]; ok {
		return b
	}
	b = &bucket{statuses: make(map[string]int64)}
	a.buckets[key] = b
	return b
}

func (a *Aggregator) lookup(name string) *bucket {
	key, err := SanitizeKey(name)
	if err != nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.buckets[key]
}

// CheckCounts returns the total, success and failure counts for a check.
// Unknown checks report zeros.
func (a *Aggregator) CheckCounts(name string) (total, success, failure int64) {
	b := a.lookup(name)
	if b == nil {
		return 0, 0, 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total, b.success, b.failure
}

// AverageDuration returns the mean duration in milliseconds for a check
func (a *Aggregator) AverageDuration(name string) (float64, bool) {
	b := a.lookup(name)
	if b == nil {
		return 0, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.total == 0 {
		return 0, false
	}
	return float64(b.sumMs) / float64(b.total), true
}

// Percentile returns the p-th percentile (0 to 100) of the recent duration
// samples for a check
func (a *Aggregator) Percentile(name string, p float64) (float64, bool) {
	b := a.lookup(name)
	if b == nil {
		return 0, false
	}

	b.mu.Lock()
	samples := make([]float64, len(b.samples))
	copy(samples, b.samples)
	b.mu.Unlock()

	if len(samples) == 0 {
		return 0, false
	}
	sort.Float64s(samples)
	return percentile(samples, p), true
}

// percentile interpolates linearly between the two samples surrounding the
// requested rank. The input must be sorted.
func percentile(sorted []float64, p float64) float64 {
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Snapshot returns every counter keyed by metric name, suitable for
// exposition
func (a *Aggregator) Snapshot() map[string]float64 {
	a.mu.RLock()
	started := a.started
	keyed := make(map[string]*bucket, len(a.buckets))
	for key, b := range a.buckets {
		keyed[key] = b
	}
	a.mu.RUnlock()

	out := map[string]float64{
		"heartbeat_total":     float64(a.heartbeats.Load()),
		"job.started_total":   float64(a.jobsStarted.Load()),
		"job.succeeded_total": float64(a.jobsSucceeded.Load()),
		"job.failed_total":    float64(a.jobsFailed.Load()),
		"job.cancelled_total": float64(a.jobsCancelled.Load()),
		"uptime_seconds":      time.Since(started).Seconds(),
	}

	for key, b := range keyed {
		b.mu.Lock()
		out["check."+key+".total"] = float64(b.total)
		for status, count := range b.statuses {
			out["check."+key+"."+status] = float64(count)
		}
		if b.total > 0 {
			out["check."+key+".duration_ms.avg"] = float64(b.sumMs) / float64(b.total)
		}
		b.mu.Unlock()
	}
	return out
}

// Summary is the derived overview of everything the aggregator has seen
type Summary struct {
	TrackedChecks int     `json:"trackedChecks"`
	TotalChecks   int64   `json:"totalChecks"`
	TotalSuccess  int64   `json:"totalSuccess"`
	TotalFailure  int64   `json:"totalFailure"`
	SuccessRate   float64 `json:"successRate"`
	JobsStarted   int64   `json:"jobsStarted"`
	JobsSucceeded int64   `json:"jobsSucceeded"`
	JobsFailed    int64   `json:"jobsFailed"`
	JobsCancelled int64   `json:"jobsCancelled"`
	Heartbeats    int64   `json:"heartbeats"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Summary derives the overview from the same counters the detailed snapshot
// reads, so the two views cannot disagree.
func (a *Aggregator) Summary() Summary {
	a.mu.RLock()
	started := a.started
	keyed := make([]*bucket, 0, len(a.buckets))
	for _, b := range a.buckets {
		keyed = append(keyed, b)
	}
	a.mu.RUnlock()

	s := Summary{
		TrackedChecks: len(keyed),
		JobsStarted:   a.jobsStarted.Load(),
		JobsSucceeded: a.jobsSucceeded.Load(),
		JobsFailed:    a.jobsFailed.Load(),
		JobsCancelled: a.jobsCancelled.Load(),
		Heartbeats:    a.heartbeats.Load(),
		UptimeSeconds: time.Since(started).Seconds(),
	}
	for _, b := range keyed {
		b.mu.Lock()
		s.TotalChecks += b.total
		s.TotalSuccess += b.success
		s.TotalFailure += b.failure
		b.mu.Unlock()
	}
	if s.TotalChecks > 0 {
		s.SuccessRate = float64(s.TotalSuccess) / float64(s.TotalChecks) * 100
	}
	return s
}

// Reset clears every counter and restarts the uptime clock. Resetting an
// already-empty aggregator is a no-op, so repeated calls are safe.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.buckets = make(map[string]*bucket)
	a.started = time.Now()
	a.mu.Unlock()

	a.heartbeats.Store(0)
	a.jobsStarted.Store(0)
	a.jobsSucceeded.Store(0)
	a.jobsFailed.Store(0)
	a.jobsCancelled.Store(0)
}
