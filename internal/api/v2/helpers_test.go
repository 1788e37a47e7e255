package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/export"
	"github.com/tphakala/linewalk/internal/inspection"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/notification"
	"github.com/tphakala/linewalk/internal/session"
)

var testNow = time.Date(2025, 6, 2, 14, 5, 0, 0, time.UTC)

// MockRecordReader is a testify mock of RecordReader
type MockRecordReader struct {
	mock.Mock
}

func (m *MockRecordReader) List(ctx context.Context) ([]datastore.Record, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]datastore.Record)
	return records, args.Error(1)
}

func (m *MockRecordReader) Get(ctx context.Context, id string) (*datastore.Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*datastore.Record)
	return rec, args.Error(1)
}

type testEnv struct {
	e          *echo.Echo
	controller *Controller
	store      *datastore.Store
	toasts     *notification.Service
}

// setupTestEnvironment wires a controller to a real session over an in-memory store
func setupTestEnvironment(t *testing.T, pairs int) *testEnv {
	t.Helper()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	clock := func() time.Time { return testNow }

	store := datastore.NewStore(datastore.NewMemoryKV(), "",
		datastore.WithClock(clock), datastore.WithLogger(log))
	toasts := notification.NewService(notification.WithLogger(log))
	sess := session.New(
		session.Config{TotalPairs: pairs, Defaults: inspection.RowDefaults{MaxScore: 10}},
		inspection.DefaultCatalog(), store,
		session.WithNotifier(toasts), session.WithClock(clock), session.WithLogger(log))
	exporter := export.New(export.WithClock(clock), export.WithLogger(log))

	e := echo.New()
	c := New(e, sess, store,
		WithExporter(exporter),
		WithNotifications(toasts),
		WithLogger(log),
		WithVersion("1.2.3"))
	t.Cleanup(exporter.Wait)

	return &testEnv{e: e, controller: c, store: store, toasts: toasts}
}

// do sends a request through the router and returns the recorder
func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func (env *testEnv) rowID(i int) string {
	return env.controller.Session.Snapshot().Rows[i].ID
}

func (env *testEnv) fillHeader(t *testing.T) {
	t.Helper()
	rec := env.do(t, http.MethodPut, "/api/v2/form/header", map[string]string{
		"category": "Line Walk Through",
		"style":    "STY001",
		"line":     "101",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (env *testEnv) setStatus(t *testing.T, rowID, status string) {
	t.Helper()
	rec := env.do(t, http.MethodPut, "/api/v2/form/rows/"+rowID+"/status", map[string]string{"status": status})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// saveRecord fills a complete form, saves it and returns the stored record
func (env *testEnv) saveRecord(t *testing.T) *datastore.Record {
	t.Helper()
	env.fillHeader(t)
	for i := range env.controller.Session.Snapshot().Rows {
		env.setStatus(t, env.rowID(i), "OK")
	}
	rec := env.do(t, http.MethodPost, "/api/v2/form/save", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[session.Result](t, rec)
	require.NotNil(t, res.Record)
	return res.Record
}
