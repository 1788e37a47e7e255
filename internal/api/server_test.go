package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/inspection"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/observability"
	"github.com/tphakala/linewalk/internal/session"
)

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()
	settings := &conf.Settings{}
	settings.WebServer.Port = "9090"
	settings.Debug = true

	cfg := ConfigFromSettings(settings)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, DefaultBodyLimit, cfg.BodyLimit)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"negative write timeout", func(c *Config) { c.WriteTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigAddress_WithHost(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	assert.Equal(t, "127.0.0.1:8080", cfg.Address())
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	store := datastore.NewStore(datastore.NewMemoryKV(), "", datastore.WithLogger(log))
	sess := session.New(session.Config{TotalPairs: 2, Defaults: inspection.RowDefaults{MaxScore: 10}},
		inspection.DefaultCatalog(), store, session.WithLogger(log))

	settings := &conf.Settings{}
	settings.WebServer.Port = "8080"
	s, err := New(settings, sess, store, append([]ServerOption{WithLogger(log), WithVersion("test")}, opts...)...)
	require.NoError(t, err)
	return s
}

func TestServer_RoutesAndSecurityHeaders(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotNil(t, s.APIController())

	req = httptest.NewRequest(http.MethodGet, "/api/v2/form", http.NoBody)
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := newTestServer(t, WithMetrics(m))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/form/summary", http.NoBody)
	s.Echo().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v2/form/summary")
}

func TestServer_CORSPreflight(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v2/form", http.NoBody)
	req.Header.Set("Origin", "http://tablet.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
