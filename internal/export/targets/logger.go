package targets

import "github.com/tphakala/linewalk/internal/logger"

// GetLogger returns the export targets logger. It is fetched from the global
// logger each time so it follows the central logger once that is configured.
func GetLogger() logger.Logger {
	return logger.Global().Module("export").Module("targets")
}
