// conf/validate.go

package conf

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tphakala/linewalk/internal/errors"
)

// HeaderFields lists the header fields a form carries; RequiredFields must be a subset.
var HeaderFields = []string{"category", "style", "model", "line", "auditor", "date", "time"}

// Backends lists the supported datastore backends.
var Backends = []string{"memory", "file", "sqlite", "mysql", "redis"}

// TargetTypes lists the supported export target types.
var TargetTypes = []string{"local", "ftp", "sftp", "s3"}

var logLevels = []string{"trace", "debug", "info", "warn", "error"}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ErrorCategory lets the errors package classify configuration failures
func (ve ValidationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryConfiguration
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateLoggingSettings,
		validateWebServerSettings,
		validateFormSettings,
		validateDatastoreSettings,
		validateExportSettings,
		validateMQTTSettings,
		validateNotificationSettings,
		validateTelemetrySettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLoggingSettings(s *Settings) error {
	if s.Logging.DefaultLevel != "" && !slices.Contains(logLevels, s.Logging.DefaultLevel) {
		return fmt.Errorf("logging.default_level must be one of %v, got %q", logLevels, s.Logging.DefaultLevel)
	}
	for module, level := range s.Logging.ModuleLevels {
		if !slices.Contains(logLevels, level) {
			return fmt.Errorf("logging.module_levels.%s must be one of %v, got %q", module, logLevels, level)
		}
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	port, err := strconv.Atoi(s.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("webserver.port must be a number between 1 and 65535, got %q", s.WebServer.Port)
	}
	return nil
}

func validateFormSettings(s *Settings) error {
	var errs []string

	if s.Form.TotalPairs < 0 {
		errs = append(errs, fmt.Sprintf("form.totalpairs must not be negative, got %d", s.Form.TotalPairs))
	}
	if s.Form.DefaultMaxScore <= 0 {
		errs = append(errs, fmt.Sprintf("form.defaultmaxscore must be positive, got %g", s.Form.DefaultMaxScore))
	}
	for _, field := range s.Form.RequiredFields {
		if !slices.Contains(HeaderFields, field) {
			errs = append(errs, fmt.Sprintf("form.requiredfields: unknown header field %q", field))
		}
	}
	if s.Form.AutoSave.Interval < 0 {
		errs = append(errs, "form.autosave.interval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("form settings errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

func validateDatastoreSettings(s *Settings) error {
	ds := &s.Datastore
	if !slices.Contains(Backends, ds.Backend) {
		return fmt.Errorf("datastore.backend must be one of %v, got %q", Backends, ds.Backend)
	}
	if ds.Key == "" {
		return fmt.Errorf("datastore.key must not be empty")
	}
	switch ds.Backend {
	case "file":
		if ds.File.Path == "" {
			return fmt.Errorf("datastore.file.path is required for the file backend")
		}
	case "sqlite":
		if ds.SQLite.Path == "" {
			return fmt.Errorf("datastore.sqlite.path is required for the sqlite backend")
		}
	case "mysql":
		if ds.MySQL.Host == "" || ds.MySQL.Database == "" {
			return fmt.Errorf("datastore.mysql.host and datastore.mysql.database are required for the mysql backend")
		}
	case "redis":
		if ds.Redis.Addr == "" {
			return fmt.Errorf("datastore.redis.addr is required for the redis backend")
		}
	}
	return nil
}

func validateExportSettings(s *Settings) error {
	if s.Export.TagSlots < 1 {
		return fmt.Errorf("export.tagslots must be at least 1, got %d", s.Export.TagSlots)
	}
	if s.Export.SheetName == "" || len(s.Export.SheetName) > 31 {
		return fmt.Errorf("export.sheetname must be 1 to 31 characters")
	}
	for i, target := range s.Export.Targets {
		if !slices.Contains(TargetTypes, target.Type) {
			return fmt.Errorf("export.targets[%d]: unknown type %q", i, target.Type)
		}
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if s.MQTT.Enabled && (s.MQTT.Broker == "" || s.MQTT.Topic == "") {
		return fmt.Errorf("mqtt.broker and mqtt.topic are required when MQTT is enabled")
	}
	return nil
}

func validateNotificationSettings(s *Settings) error {
	if s.Notification.Push.Enabled && len(s.Notification.Push.URLs) == 0 {
		return fmt.Errorf("notification.push.urls must list at least one URL when push is enabled")
	}
	return nil
}

func validateTelemetrySettings(s *Settings) error {
	if s.Telemetry.Enabled && s.Telemetry.DSN == "" {
		return fmt.Errorf("telemetry.dsn is required when telemetry is enabled")
	}
	return nil
}
