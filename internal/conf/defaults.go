// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default form values shared with packages that build forms without a config file.
const (
	DefaultTotalPairs      = 20
	DefaultMaxScore        = 10.0
	DefaultRecordsKey      = "lineWalkThroughData"
	DefaultTagSlots        = 10
	DefaultSheetName       = "LWT Data"
	DefaultAutoSave        = 30 * time.Second
	DefaultExportTimeout   = 2 * time.Minute
	DefaultPushSendTimeout = 10 * time.Second
	DefaultMQTTBroker      = "tcp://localhost:1883"
	DefaultMQTTTopic       = "linewalk"
)

// DefaultRequiredFields are the header fields a record needs before it can be saved.
var DefaultRequiredFields = []string{"category", "style", "line"}

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "LineWalk")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/linewalk.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("form.totalpairs", DefaultTotalPairs)
	viper.SetDefault("form.defaultmaxscore", DefaultMaxScore)
	viper.SetDefault("form.requiredfields", DefaultRequiredFields)
	viper.SetDefault("form.strict", false)
	viper.SetDefault("form.autosave.interval", DefaultAutoSave)

	viper.SetDefault("catalog.path", "")

	viper.SetDefault("datastore.backend", "file")
	viper.SetDefault("datastore.key", DefaultRecordsKey)
	viper.SetDefault("datastore.file.path", "data/linewalk.json")
	viper.SetDefault("datastore.sqlite.path", "data/linewalk.db")
	viper.SetDefault("datastore.mysql.host", "localhost")
	viper.SetDefault("datastore.mysql.port", "3306")
	viper.SetDefault("datastore.mysql.username", "")
	viper.SetDefault("datastore.mysql.password", "")
	viper.SetDefault("datastore.mysql.database", "linewalk")
	viper.SetDefault("datastore.redis.addr", "localhost:6379")
	viper.SetDefault("datastore.redis.password", "")
	viper.SetDefault("datastore.redis.db", 0)

	viper.SetDefault("export.tagslots", DefaultTagSlots)
	viper.SetDefault("export.summary", true)
	viper.SetDefault("export.sheetname", DefaultSheetName)
	viper.SetDefault("export.dir", "exports")
	viper.SetDefault("export.timeout", DefaultExportTimeout)
	viper.SetDefault("export.targets", []map[string]any{})

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", DefaultMQTTBroker)
	viper.SetDefault("mqtt.topic", DefaultMQTTTopic)
	viper.SetDefault("mqtt.clientid", "linewalk")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")

	viper.SetDefault("notification.push.enabled", false)
	viper.SetDefault("notification.push.urls", []string{})
	viper.SetDefault("notification.push.timeout", DefaultPushSendTimeout)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")
	viper.SetDefault("telemetry.environment", "production")

	viper.SetDefault("metrics.enabled", true)
}
