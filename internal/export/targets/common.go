// Package targets provides destinations for exported files
package targets

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/logger"
)

// Common constants for file operations and limits
const (
	PermDir  = 0o700 // rwx------ for directories
	PermFile = 0o600 // rw------- for files

	MaxComponentLength = 255 // maximum file name length

	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second
	DefaultTimeout      = 30 * time.Second

	DefaultFTPPort = 21
	DefaultSSHPort = 22
)

// Target types accepted in export.targets
const (
	TypeLocal = "local"
	TypeFTP   = "ftp"
	TypeSFTP  = "sftp"
	TypeS3    = "s3"
)

// Target stores one exported file
type Target interface {
	Name() string
	Store(ctx context.Context, name string, r io.Reader) error
}

// New builds a target from its configuration
func New(ctx context.Context, cfg conf.ExportTarget, log logger.Logger) (Target, error) {
	if log == nil {
		log = GetLogger()
	}
	settings := cfg.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	switch strings.ToLower(cfg.Type) {
	case TypeLocal:
		return NewLocalTargetFromMap(settings, log)
	case TypeFTP:
		return NewFTPTargetFromMap(settings, log)
	case TypeSFTP:
		return NewSFTPTargetFromMap(settings, log)
	case TypeS3:
		return NewS3TargetFromMap(ctx, settings, log)
	default:
		return nil, errors.Newf("unsupported export target type %q", cfg.Type).
			Component("export").
			Category(errors.CategoryConfiguration).
			Context("type", cfg.Type).
			Build()
	}
}

// transientErrorPatterns contains substrings that indicate a retriable error
var transientErrorPatterns = []string{
	"connection reset",
	"connection refused",
	"connection closed",
	"timeout",
	"temporary",
	"broken pipe",
	"no route to host",
	"EOF",
	"ssh: handshake failed",
	"resource temporarily unavailable",
}

// IsTransientError reports whether an error is likely transient and can be retried
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if os.IsTimeout(err) {
		return true
	}
	errStr := err.Error()
	for _, pattern := range transientErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryConfig returns the retry settings used by remote targets
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultRetryBackoff,
	}
}

// WithRetry runs op, retrying transient errors with linear backoff
func WithRetry(ctx context.Context, cfg RetryConfig, log logger.Logger, op func() error) error {
	var lastErr error
	for attempt := range max(cfg.MaxRetries, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return err
		}
		lastErr = err
		log.Debug("retrying after transient error",
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_retries", cfg.MaxRetries))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Backoff * time.Duration(attempt+1)):
		}
	}
	return lastErr
}

// InvalidNameChars contains characters that are not allowed in stored file names
const InvalidNameChars = "<>:\"\\|?*$()[]{}!&;#`"

// ValidateFileName checks that name is a single safe path component
func ValidateFileName(name string) error {
	switch {
	case name == "":
		return errors.ValidationError("file name cannot be empty")
	case !filepath.IsLocal(name) || strings.ContainsAny(name, `/\`):
		return errors.ValidationError("file name must not contain path separators")
	case strings.HasPrefix(name, "."):
		return errors.ValidationError("hidden file names are not allowed")
	case strings.ContainsAny(name, InvalidNameChars):
		return errors.ValidationError("file name contains invalid characters")
	case len(name) > MaxComponentLength:
		return errors.ValidationError("file name exceeds maximum length")
	}
	return nil
}

// SettingsParser extracts typed values from a target's settings map and
// collects every problem so they can be reported at once.
type SettingsParser struct {
	settings  map[string]any
	component string
	errors    []string
}

// NewSettingsParser creates a parser for one target type
func NewSettingsParser(settings map[string]any, component string) *SettingsParser {
	return &SettingsParser{settings: settings, component: component}
}

// RequireString extracts a required string value, recording an error if missing
func (p *SettingsParser) RequireString(key string) string {
	if val, ok := p.settings[key].(string); ok && val != "" {
		return val
	}
	p.errors = append(p.errors, p.component+": "+key+" is required")
	return ""
}

// OptionalString extracts an optional string value with a default
func (p *SettingsParser) OptionalString(key, defaultVal string) string {
	if val, ok := p.settings[key].(string); ok {
		return val
	}
	return defaultVal
}

// OptionalInt accepts ints and the float64 values YAML and JSON decoders produce
func (p *SettingsParser) OptionalInt(key string, defaultVal int) int {
	switch val := p.settings[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	}
	return defaultVal
}

// OptionalBool extracts an optional bool value with a default
func (p *SettingsParser) OptionalBool(key string, defaultVal bool) bool {
	if val, ok := p.settings[key].(bool); ok {
		return val
	}
	return defaultVal
}

// OptionalDuration extracts an optional duration string with a default
func (p *SettingsParser) OptionalDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := p.settings[key].(string); ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			p.errors = append(p.errors, p.component+": invalid "+key+" format")
			return defaultVal
		}
		return duration
	}
	return defaultVal
}

// OptionalPath extracts an optional path, trimming trailing slashes
func (p *SettingsParser) OptionalPath(key, defaultVal string) string {
	if val, ok := p.settings[key].(string); ok && val != "" {
		if val == "/" {
			return val
		}
		return strings.TrimRight(val, "/")
	}
	return defaultVal
}

// Error returns a combined configuration error, or nil
func (p *SettingsParser) Error() error {
	if len(p.errors) == 0 {
		return nil
	}
	return errors.Newf("%s", strings.Join(p.errors, "; ")).
		Component("export").
		Category(errors.CategoryConfiguration).
		Context("target", p.component).
		Build()
}

// ContentTypeFor returns the MIME type of an export file name, or ""
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv; charset=utf-8"
	default:
		return ""
	}
}

func storeError(target, op string, err error) error {
	category := errors.CategoryFileIO
	if target != TypeLocal {
		category = errors.CategoryNetwork
	}
	return errors.New(err).
		Component("export").
		Category(category).
		Context("target", target).
		Context("operation", op).
		Build()
}
