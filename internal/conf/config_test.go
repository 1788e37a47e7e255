package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/linewalk/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := LoadFile(writeConfig(t, "main:\n  name: Plant A\n"))
	require.NoError(t, err)

	assert.Equal(t, "Plant A", settings.Main.Name)
	assert.Equal(t, DefaultTotalPairs, settings.Form.TotalPairs)
	assert.InDelta(t, DefaultMaxScore, settings.Form.DefaultMaxScore, 0.0001)
	assert.Equal(t, DefaultRequiredFields, settings.Form.RequiredFields)
	assert.Equal(t, 30*time.Second, settings.Form.AutoSave.Interval)
	assert.Equal(t, "file", settings.Datastore.Backend)
	assert.Equal(t, DefaultRecordsKey, settings.Datastore.Key)
	assert.Equal(t, DefaultTagSlots, settings.Export.TagSlots)
	assert.Equal(t, DefaultSheetName, settings.Export.SheetName)
	assert.True(t, settings.Export.Summary)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.Same(t, settings, GetSettings())
}

func TestLoadFileReadsTargetsAndDurations(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := LoadFile(writeConfig(t, `
form:
  autosave:
    interval: 5s
  strict: true
datastore:
  backend: memory
export:
  targets:
    - type: sftp
      enabled: true
      settings:
        host: files.local
        port: 2222
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, settings.Form.AutoSave.Interval)
	assert.True(t, settings.Form.Strict)
	assert.Equal(t, "memory", settings.Datastore.Backend)
	require.Len(t, settings.Export.Targets, 1)
	assert.Equal(t, "sftp", settings.Export.Targets[0].Type)
	assert.Equal(t, "files.local", settings.Export.Targets[0].Settings["host"])
}

func TestEnvironmentOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("LINEWALK_WEBSERVER_PORT", "9191")

	settings, err := LoadFile(writeConfig(t, "debug: true\n"))
	require.NoError(t, err)

	assert.Equal(t, "9191", settings.WebServer.Port)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel, "debug flag lowers the default level")
}

func TestLoadFileRejectsInvalidSettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := LoadFile(writeConfig(t, "datastore:\n  backend: floppy\n"))
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Errors[0], "datastore.backend")
}

func TestLoadFileMissingFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestEmbeddedConfigIsValid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	data, err := getDefaultConfig()
	require.NoError(t, err)

	settings, err := LoadFile(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, "LineWalk", settings.Main.Name)
}

func TestSaveYAMLConfigRoundTripsKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	settings := &Settings{}
	settings.Main.Name = "Plant B"
	settings.Form.TotalPairs = 12

	require.NoError(t, SaveYAMLConfig(path, settings))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Equal(t, "Plant B", raw["main"].(map[string]any)["name"])
	assert.Equal(t, 12, raw["form"].(map[string]any)["totalpairs"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is cleaned up")
}
