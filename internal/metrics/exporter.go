package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Exporter bridges the aggregator into a Prometheus registry. The metric set
// is dynamic, so it registers as an unchecked collector.
type Exporter struct {
	agg *Aggregator
}

// NewExporter creates a collector over the given aggregator
func NewExporter(agg *Aggregator) *Exporter {
	return &Exporter{agg: agg}
}

// Describe sends no descriptors, marking the collector unchecked
func (e *Exporter) Describe(chan<- *prometheus.Desc) {}

// Collect emits one gauge per snapshot entry
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	for key, value := range e.agg.Snapshot() {
		desc := prometheus.NewDesc(promName(key), "aggregated monitoring metric", nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value)
	}
}

var promReplacer = strings.NewReplacer(".", "_", "-", "_")

// promName converts a snapshot key into a Prometheus metric name
func promName(key string) string {
	return "vigil_" + promReplacer.Replace(key)
}
