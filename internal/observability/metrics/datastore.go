package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for key-value and record operations
type DatastoreMetrics struct {
	registry *prometheus.Registry

	kvOperationsTotal     *prometheus.CounterVec
	kvOperationDuration   *prometheus.HistogramVec
	recordOperationsTotal *prometheus.CounterVec
	recordValidationTotal *prometheus.CounterVec
	recordsStoredGauge    prometheus.Gauge

	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.kvOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linewalk_kv_operations_total",
			Help: "Total number of key-value backend operations",
		},
		[]string{"backend", "operation", "status"}, // operation: get, set
	)

	m.kvOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linewalk_kv_operation_duration_seconds",
			Help:    "Time taken for key-value backend operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"backend", "operation"},
	)

	m.recordOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linewalk_record_operations_total",
			Help: "Total number of record store operations",
		},
		[]string{"operation", "status"}, // operation: list, get, save, delete
	)

	m.recordValidationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linewalk_record_validation_failures_total",
			Help: "Saves rejected by header or row validation",
		},
		[]string{"reason"},
	)

	m.recordsStoredGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "linewalk_records_stored",
		Help: "Number of records in the store after the last write",
	})

	m.collectors = []prometheus.Collector{
		m.kvOperationsTotal,
		m.kvOperationDuration,
		m.recordOperationsTotal,
		m.recordValidationTotal,
		m.recordsStoredGauge,
	}
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordKVOperation records a backend get or set with its duration in seconds
func (m *DatastoreMetrics) RecordKVOperation(backend, operation, status string, duration float64) {
	if m == nil {
		return
	}
	m.kvOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.kvOperationDuration.WithLabelValues(backend, operation).Observe(duration)
}

// RecordRecordOperation records a record store operation
func (m *DatastoreMetrics) RecordRecordOperation(operation, status string) {
	if m == nil {
		return
	}
	m.recordOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordValidationFailure records a rejected save
func (m *DatastoreMetrics) RecordValidationFailure(reason string) {
	if m == nil {
		return
	}
	m.recordValidationTotal.WithLabelValues(reason).Inc()
}

// SetRecordsStored updates the stored record count
func (m *DatastoreMetrics) SetRecordsStored(n int) {
	if m == nil {
		return
	}
	m.recordsStoredGauge.Set(float64(n))
}
