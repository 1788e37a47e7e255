package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/linewalk/internal/buildinfo"
	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/inspection"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/session"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Main.Name = "test"
	s.Datastore.Backend = datastore.BackendMemory
	s.Form.TotalPairs = 2
	s.Form.DefaultMaxScore = 10
	s.WebServer.Port = "0"
	return s
}

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

func TestNew_WiresSessionToStore(t *testing.T) {
	t.Parallel()
	settings := testSettings(t)
	settings.Metrics.Enabled = true

	a, err := New(context.Background(), settings, buildinfo.NewContext("1.0.0", ""))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	require.NotNil(t, a.Metrics)
	assert.Nil(t, a.Publisher, "MQTT is disabled")
	assert.Len(t, a.Session.Snapshot().Rows, 2)

	ctx := context.Background()
	for _, cmd := range []session.Command{
		{Kind: session.CmdSetHeader, Field: "category", Value: "Line Walk Through"},
		{Kind: session.CmdSelectStyle, Value: "STY001"},
		{Kind: session.CmdSetHeader, Field: "line", Value: "101"},
	} {
		_, err := a.Session.Dispatch(ctx, cmd)
		require.NoError(t, err)
	}
	for _, row := range a.Session.Snapshot().Rows {
		_, err := a.Session.Dispatch(ctx, session.Command{Kind: session.CmdSetStatus, RowID: row.ID, Status: "OK"})
		require.NoError(t, err)
	}
	res, err := a.Session.Dispatch(ctx, session.Command{Kind: session.CmdSave})
	require.NoError(t, err)
	require.NotNil(t, res.Record)

	records, err := a.Store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, res.Record.ID, records[0].ID)
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Parallel()
	settings := testSettings(t)
	settings.Datastore.Backend = "floppy"

	_, err := New(context.Background(), settings, nil)
	assert.Error(t, err)
}

func TestStore_RequiredFieldsFromSettings(t *testing.T) {
	t.Parallel()
	settings := testSettings(t)
	settings.Form.RequiredFields = []string{"auditor"}

	kv, store, err := Store(context.Background(), settings, nil, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	form := inspection.NewForm(1, inspection.RowDefaults{MaxScore: 10})
	form.Header.Line = "101"
	_, err = store.Save(context.Background(), form)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "required header fields")
}

func TestCatalog_FromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defects:\n  - Scratch\nstyles:\n  - code: X1\n    model: Runner\n"), 0o600))

	settings := testSettings(t)
	settings.Catalog.Path = path
	c, err := Catalog(settings)
	require.NoError(t, err)
	assert.True(t, c.IsDefect("Scratch"))
	assert.Equal(t, "Runner", c.ModelFor("X1"))

	settings.Catalog.Path = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Catalog(settings)
	assert.Error(t, err)
}

func TestTargets_SkipsDisabledAndBroken(t *testing.T) {
	t.Parallel()
	settings := testSettings(t)
	settings.Export.Targets = []conf.ExportTarget{
		{Type: "local", Enabled: true, Settings: map[string]any{"path": t.TempDir()}},
		{Type: "local", Enabled: false, Settings: map[string]any{"path": t.TempDir()}},
		{Type: "carrier-pigeon", Enabled: true},
	}

	ts := Targets(context.Background(), settings, quietLogger())

	require.Len(t, ts, 1)
	assert.Equal(t, "local", ts[0].Name())
}
