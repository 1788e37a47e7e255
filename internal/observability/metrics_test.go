package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/linewalk/internal/observability/metrics"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	require.NotNil(t, m.Datastore)
	require.NotNil(t, m.Export)
	require.NotNil(t, m.MQTT)
	require.NotNil(t, m.HTTP)

	m.Datastore.RecordRecordOperation("save", metrics.StatusSuccess)
	m.Export.RecordExport("xlsx", metrics.StatusSuccess, 0.02, 4096)
	m.Export.RecordFallback()
	m.MQTT.UpdateConnectionStatus(true)
	m.HTTP.RecordHTTPRequest(http.MethodGet, "/api/v2/records", http.StatusOK, 0.001)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Export.FallbacksTotal), 0.0001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MQTT.ConnectionStatus), 0.0001)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["linewalk_record_operations_total"])
	assert.True(t, names["linewalk_exports_total"])
	assert.True(t, names["linewalk_http_requests_total"])
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Datastore.SetRecordsStored(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "linewalk_records_stored 3")
}

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()

	var d *metrics.DatastoreMetrics
	var e *metrics.ExportMetrics
	var q *metrics.MQTTMetrics
	var h *metrics.HTTPMetrics

	assert.NotPanics(t, func() {
		d.RecordKVOperation("file", "get", metrics.StatusSuccess, 0.1)
		d.RecordValidationFailure("header")
		e.RecordTargetStore("s3", metrics.StatusError)
		q.IncrementErrors()
		h.RecordConfirmation("delete", true)
	})
}
