package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains Prometheus metrics for the API
type HTTPMetrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	toastsTotal     *prometheus.CounterVec
	pushTotal       *prometheus.CounterVec
	confirmsTotal   *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers API metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linewalk_http_requests_total",
		Help: "Total number of API requests",
	}, []string{"method", "path", "status"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linewalk_http_request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	}, []string{"method", "path"})

	m.toastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linewalk_notifications_total",
		Help: "Transient notifications raised, by type",
	}, []string{"type"})

	m.pushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linewalk_push_notifications_total",
		Help: "Push notifications sent through shoutrrr",
	}, []string{"status"})

	m.confirmsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linewalk_confirmations_total",
		Help: "Resolved confirmation prompts by kind and answer",
	}, []string{"kind", "answer"})
}

func (m *HTTPMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{m.requestsTotal, m.requestDuration, m.toastsTotal, m.pushTotal, m.confirmsTotal}
}

// Describe implements the prometheus.Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordHTTPRequest records a completed request. path is the route template, not the raw URL.
func (m *HTTPMetrics) RecordHTTPRequest(method, path string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordToast counts a transient notification
func (m *HTTPMetrics) RecordToast(toastType string) {
	if m == nil {
		return
	}
	m.toastsTotal.WithLabelValues(toastType).Inc()
}

// RecordPush counts a push notification attempt
func (m *HTTPMetrics) RecordPush(status string) {
	if m == nil {
		return
	}
	m.pushTotal.WithLabelValues(status).Inc()
}

// RecordConfirmation counts a resolved confirmation
func (m *HTTPMetrics) RecordConfirmation(kind string, confirmed bool) {
	if m == nil {
		return
	}
	answer := "cancel"
	if confirmed {
		answer = "confirm"
	}
	m.confirmsTotal.WithLabelValues(kind, answer).Inc()
}
