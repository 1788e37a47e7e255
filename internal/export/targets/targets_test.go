package targets

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

func TestLocalTarget_Store(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "exports")

	target, err := NewLocalTarget(dir, testLogger())
	require.NoError(t, err)
	assert.Equal(t, TypeLocal, target.Name())

	require.NoError(t, target.Store(context.Background(), "LWT-Audit-2025-06-02_20250602-140500.xlsx", strings.NewReader("first")))
	require.NoError(t, target.Store(context.Background(), "LWT-Audit-2025-06-02_20250602-140500.xlsx", strings.NewReader("second")))

	data, err := os.ReadFile(filepath.Join(dir, "LWT-Audit-2025-06-02_20250602-140500.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(filepath.Join(dir, "LWT-Audit-2025-06-02_20250602-140500.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(PermFile), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestLocalTarget_RejectsUnsafeNames(t *testing.T) {
	t.Parallel()
	target, err := NewLocalTarget(t.TempDir(), testLogger())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.xlsx", "a/b.xlsx", ".hidden", "bad|name.csv"} {
		err := target.Store(context.Background(), name, strings.NewReader("x"))
		require.Error(t, err, name)
		assert.True(t, errors.IsValidation(err), name)
	}
}

func TestLocalTarget_CancelledContext(t *testing.T) {
	t.Parallel()
	target, err := NewLocalTarget(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, target.Store(ctx, "x.csv", strings.NewReader("x")), context.Canceled)
}

func TestMemoryTarget(t *testing.T) {
	t.Parallel()
	target := NewMemoryTarget()
	require.NoError(t, target.Store(context.Background(), "a.csv", strings.NewReader("1,2")))

	name, data := target.File()
	assert.Equal(t, "a.csv", name)
	assert.Equal(t, "1,2", string(data))
}

func TestNew_Factory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	local, err := New(ctx, conf.ExportTarget{Type: "LOCAL", Settings: map[string]any{"path": t.TempDir()}}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, TypeLocal, local.Name())

	ftpTarget, err := New(ctx, conf.ExportTarget{Type: "ftp", Settings: map[string]any{"host": "ftp.example.com", "port": 2121.0}}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2121, ftpTarget.(*FTPTarget).config.Port)
	assert.Equal(t, "exports", ftpTarget.(*FTPTarget).config.BasePath)

	_, err = New(ctx, conf.ExportTarget{Type: "sftp", Settings: map[string]any{"host": "sftp.example.com"}}, testLogger())
	require.Error(t, err, "sftp needs a password or key")
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = New(ctx, conf.ExportTarget{Type: "ftp"}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp: host is required")

	_, err = New(ctx, conf.ExportTarget{Type: "ftp", Settings: map[string]any{"host": "h", "timeout": "soon"}}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout format")

	_, err = New(ctx, conf.ExportTarget{Type: "gdrive"}, testLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestIsTransientError(t *testing.T) {
	t.Parallel()
	assert.False(t, IsTransientError(nil))
	assert.True(t, IsTransientError(errors.NewStd("read tcp: connection reset by peer")))
	assert.True(t, IsTransientError(errors.NewStd("unexpected EOF")))
	assert.False(t, IsTransientError(errors.NewStd("550 permission denied")))
}

func TestWithRetry(t *testing.T) {
	t.Parallel()
	cfg := RetryConfig{MaxRetries: 3, Backoff: time.Millisecond}

	attempts := 0
	err := WithRetry(context.Background(), cfg, testLogger(), func() error {
		attempts++
		if attempts < 3 {
			return errors.NewStd("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	permanent := errors.NewStd("530 login incorrect")
	err = WithRetry(context.Background(), cfg, testLogger(), func() error {
		attempts++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts, "permanent errors are not retried")
}

type captureTransport struct {
	mu      sync.Mutex
	method  string
	path    string
	body    string
	headers http.Header
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.method = req.Method
	c.path = req.URL.Path
	c.headers = req.Header.Clone()
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		c.body = string(b)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"ETag": []string{`"abc"`}},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

func TestS3Target_Store(t *testing.T) {
	t.Parallel()
	rt := &captureTransport{}

	target, err := NewS3Target(context.Background(), S3TargetConfig{
		Bucket:          "inspections",
		Region:          "eu-north-1",
		Endpoint:        "https://mock.s3.local",
		Prefix:          "/linewalk/",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
	}, testLogger(), func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
	})
	require.NoError(t, err)
	assert.Equal(t, "linewalk/a.csv", target.Key("a.csv"))

	require.NoError(t, target.Store(context.Background(), "a.csv", strings.NewReader("No.,OK/NG")))

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.Equal(t, http.MethodPut, rt.method)
	assert.Equal(t, "/inspections/linewalk/a.csv", rt.path)
	assert.Contains(t, rt.body, "No.,OK/NG")
	assert.Contains(t, rt.headers.Get("Content-Type"), "text/csv")
}

func TestS3Target_RequiresBucket(t *testing.T) {
	t.Parallel()
	_, err := NewS3TargetFromMap(context.Background(), map[string]any{}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket is required")
}
