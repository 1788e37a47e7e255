package logger

import (
	"regexp"
	"strings"
)

// sensitiveDataPatterns match credentials that may leak into log messages,
// mostly connection strings for export targets, brokers and push services.
var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((?:api|access|auth|token|secret|key|passw(?:or)?d)[0-9a-z\-_\.]*[\s:=]+)([^;,\s]{5,})`),
	regexp.MustCompile(`(?i)([a-z][a-z0-9+.-]*://[^:/@\s]+:)([^@\s]+)(@)`),
}

var sensitiveKeywords = []string{
	"password", "passwd", "secret", "credential", "token", "api_key", "apikey", "dsn", "authorization",
}

// RedactSensitiveData replaces credentials in free text with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for _, pattern := range sensitiveDataPatterns {
		if pattern.NumSubexp() == 3 {
			input = pattern.ReplaceAllString(input, "${1}[REDACTED]${3}")
			continue
		}
		input = pattern.ReplaceAllString(input, "${1}[REDACTED]")
	}
	return input
}

// RedactField returns f with its value redacted when the key names a secret,
// or with credentials stripped from string values otherwise.
func RedactField(f Field) Field {
	s, ok := f.Value.(string)
	if !ok || s == "" {
		return f
	}
	key := strings.ToLower(f.Key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return Field{Key: f.Key, Value: "[REDACTED]"}
		}
	}
	return Field{Key: f.Key, Value: RedactSensitiveData(s)}
}
