package records

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/linewalk/internal/app"
	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/inspection"
)

// fileSettings returns settings backed by a JSON file so records survive between commands
func fileSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Datastore.Backend = datastore.BackendFile
	s.Datastore.File.Path = filepath.Join(t.TempDir(), "records.json")
	s.Export.Dir = t.TempDir()
	s.Export.Summary = true
	return s
}

func seedRecord(t *testing.T, settings *conf.Settings) *datastore.Record {
	t.Helper()
	kv, store, err := app.Store(context.Background(), settings, nil, app.GetLogger())
	require.NoError(t, err)
	defer func() { _ = kv.Close() }()

	form := inspection.NewForm(2, inspection.RowDefaults{MaxScore: 10})
	form.Header = inspection.Header{Category: "Final Inspection", Style: "STY003", Line: "7", Date: "2025-06-02"}
	require.NoError(t, form.SetStatus(form.Rows[0].ID, inspection.StatusOK))
	require.NoError(t, form.SetStatus(form.Rows[1].ID, inspection.StatusNG))

	rec, err := store.Save(context.Background(), form)
	require.NoError(t, err)
	return rec
}

func run(t *testing.T, settings *conf.Settings, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := Command(settings)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	t.Parallel()
	settings := fileSettings(t)

	out, err := run(t, settings, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No records saved")

	rec := seedRecord(t, settings)
	out, err = run(t, settings, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)
	assert.Contains(t, out, "LWT-Final Inspection-2025-06-02")
	assert.Contains(t, out, "STY003")
}

func TestExport_WritesWorkbook(t *testing.T) {
	t.Parallel()
	settings := fileSettings(t)
	rec := seedRecord(t, settings)
	outDir := t.TempDir()

	out, err := run(t, settings, "", "export", rec.ID, "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported "+rec.Name)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".xlsx"))

	data, err := os.ReadFile(filepath.Join(outDir, entries[0].Name()))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))
}

func TestExport_UnknownRecord(t *testing.T) {
	t.Parallel()
	settings := fileSettings(t)

	_, err := run(t, settings, "", "export", "lwt_404")
	assert.Error(t, err)
}

func TestDelete_AsksFirst(t *testing.T) {
	t.Parallel()
	settings := fileSettings(t)
	rec := seedRecord(t, settings)

	out, err := run(t, settings, "n\n", "delete", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")

	out, err = run(t, settings, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID, "record kept after declining")

	out, err = run(t, settings, "yes\n", "delete", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+rec.Name)

	out, err = run(t, settings, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No records saved")
}

func TestDelete_YesFlagSkipsPrompt(t *testing.T) {
	t.Parallel()
	settings := fileSettings(t)
	rec := seedRecord(t, settings)

	out, err := run(t, settings, "", "delete", "--yes", rec.ID)
	require.NoError(t, err)
	assert.NotContains(t, out, "[y/N]")
	assert.Contains(t, out, "Deleted")
}

func TestConfirm(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
		"y":     true,
	}
	for input, want := range tests {
		var out bytes.Buffer
		assert.Equal(t, want, confirm(strings.NewReader(input), &out, "Sure?"), "input %q", input)
		assert.Equal(t, "Sure? [y/N] ", out.String())
	}
}
