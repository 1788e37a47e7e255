package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ExportMetrics contains Prometheus metrics for spreadsheet exports and target uploads
type ExportMetrics struct {
	ExportsTotal     *prometheus.CounterVec
	ExportDuration   *prometheus.HistogramVec
	FallbacksTotal   prometheus.Counter
	ExportBytes      prometheus.Histogram
	TargetStoreTotal *prometheus.CounterVec
	registry         *prometheus.Registry
}

// NewExportMetrics creates and registers export metrics
func NewExportMetrics(registry *prometheus.Registry) (*ExportMetrics, error) {
	m := &ExportMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register export metrics: %w", err)
	}
	return m, nil
}

func (m *ExportMetrics) initMetrics() {
	m.ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linewalk_exports_total",
		Help: "Total number of record exports by format and result",
	}, []string{"format", "status"})

	m.ExportDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linewalk_export_duration_seconds",
		Help:    "Time taken to encode and store an export",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	}, []string{"format"})

	m.FallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linewalk_export_fallbacks_total",
		Help: "Exports retried with the CSV encoder after an xlsx failure",
	})

	m.ExportBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "linewalk_export_size_bytes",
		Help:    "Size of encoded export files",
		Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to 2MB
	})

	m.TargetStoreTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linewalk_export_target_uploads_total",
		Help: "Uploads of exports to configured targets",
	}, []string{"target", "status"})
}

// Describe implements the prometheus.Collector interface
func (m *ExportMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ExportsTotal.Describe(ch)
	m.ExportDuration.Describe(ch)
	m.FallbacksTotal.Describe(ch)
	m.ExportBytes.Describe(ch)
	m.TargetStoreTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *ExportMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ExportsTotal.Collect(ch)
	m.ExportDuration.Collect(ch)
	m.FallbacksTotal.Collect(ch)
	m.ExportBytes.Collect(ch)
	m.TargetStoreTotal.Collect(ch)
}

// RecordExport records one encode-and-store attempt
func (m *ExportMetrics) RecordExport(format, status string, duration float64, size int) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(format, status).Inc()
	m.ExportDuration.WithLabelValues(format).Observe(duration)
	if size > 0 {
		m.ExportBytes.Observe(float64(size))
	}
}

// RecordFallback records a retry with the CSV encoder
func (m *ExportMetrics) RecordFallback() {
	if m == nil {
		return
	}
	m.FallbacksTotal.Inc()
}

// RecordTargetStore records an upload to a configured target
func (m *ExportMetrics) RecordTargetStore(target, status string) {
	if m == nil {
		return
	}
	m.TargetStoreTotal.WithLabelValues(target, status).Inc()
}
