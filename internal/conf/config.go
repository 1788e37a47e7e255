// config.go: settings struct for the line walk service and functions to load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// EnvPrefix is prepended to every environment override, e.g. LINEWALK_WEBSERVER_PORT.
const EnvPrefix = "LINEWALK"

// WebServerSettings contains settings for the HTTP API.
type WebServerSettings struct {
	Port  string // port the API listens on
	Debug bool   // true to log every request at debug level
}

// AutoSaveSettings controls the periodic background save of a dirty form.
type AutoSaveSettings struct {
	Interval time.Duration // 0 disables auto-save
}

// FormSettings contains defaults for new inspection forms.
type FormSettings struct {
	TotalPairs      int              // expected number of rows; fewer inspected rows asks before saving
	DefaultMaxScore float64          // max score assigned to new rows
	RequiredFields  []string         // header fields that must be non-empty on save
	Strict          bool             // require at least one row with a status on save
	AutoSave        AutoSaveSettings // background save
}

// CatalogSettings points at an optional catalog file overriding the built-in one.
type CatalogSettings struct {
	Path string // YAML file with styles, defects, lines and categories
}

// FileStoreSettings configures the JSON file key-value backend.
type FileStoreSettings struct {
	Path string
}

// SQLiteSettings configures the SQLite key-value backend.
type SQLiteSettings struct {
	Path string
}

// MySQLSettings configures the MySQL key-value backend.
type MySQLSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// RedisSettings configures the Redis key-value backend.
type RedisSettings struct {
	Addr     string // host:port
	Password string
	DB       int
}

// DatastoreSettings selects and configures the record store backend.
type DatastoreSettings struct {
	Backend string // memory, file, sqlite, mysql or redis
	Key     string // key holding the JSON record list
	File    FileStoreSettings
	SQLite  SQLiteSettings
	MySQL   MySQLSettings
	Redis   RedisSettings
}

// ExportTarget defines a destination that receives a copy of every export.
type ExportTarget struct {
	Type     string         `yaml:"type"`     // "local", "ftp", "sftp", "s3"
	Enabled  bool           `yaml:"enabled"`  // true to enable this target
	Settings map[string]any `yaml:"settings"` // target-specific settings
}

// ExportSettings contains spreadsheet export settings.
type ExportSettings struct {
	TagSlots  int            // number of "Defect type N" columns
	Summary   bool           // append the totals block
	SheetName string         // worksheet name
	Dir       string         // directory used by the CLI export command
	Timeout   time.Duration  // deadline for publishing to targets
	Targets   []ExportTarget // extra destinations
}

// MQTTSettings contains settings for record event publishing.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:1883
	Topic    string // base topic, events go to <topic>/records
	ClientID string
	Username string
	Password string
}

// PushSettings configures shoutrrr push notifications.
type PushSettings struct {
	Enabled bool
	URLs    []string      // shoutrrr service URLs
	Timeout time.Duration // per-send timeout
}

// NotificationSettings groups notification delivery settings.
type NotificationSettings struct {
	Push PushSettings
}

// TelemetrySettings controls Sentry error reporting.
type TelemetrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// MetricsSettings controls the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool
}

// Settings contains all configuration options for the service.
type Settings struct {
	Debug bool // true to enable debug logging everywhere

	Main struct {
		Name string // instance name, shown in notifications and MQTT payloads
	}

	Logging      logger.LoggingConfig
	WebServer    WebServerSettings
	Form         FormSettings
	Catalog      CatalogSettings
	Datastore    DatastoreSettings
	Export       ExportSettings
	MQTT         MQTTSettings
	Notification NotificationSettings
	Telemetry    TelemetrySettings
	Metrics      MetricsSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the settings instance.
func Load() (*Settings, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the default locations.
func LoadFile(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_config").
			Build()
	}

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, env overrides and reads the configuration file.
func initViper(configFile string) error {
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.New(err).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				FileContext(configFile, 0).
				Context("operation", "read_config").
				Build()
		}
		return nil
	}

	viper.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths)
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml to the first writable config path.
func createDefaultConfig(configPaths []string) error {
	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	var lastErr error
	for _, dir := range configPaths {
		configPath := filepath.Join(dir, "config.yaml")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			lastErr = err
			continue
		}
		if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil { //nolint:gosec // config is not secret by default
			lastErr = err
			continue
		}
		GetLogger().Info("created default config file", logger.String("path", configPath))
		viper.SetConfigFile(configPath)
		return viper.ReadInConfig()
	}

	return errors.New(lastErr).
		Component("configuration").
		Category(errors.CategoryFileIO).
		Context("operation", "create_default_config").
		Build()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				GetLogger().Error("error loading settings", logger.Error(err))
				os.Exit(1)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes settings to configPath atomically.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := moveFile(tempFileName, configPath); err != nil {
		return fmt.Errorf("error moving config file into place: %w", err)
	}

	return nil
}
