package logger

import (
	"regexp"

	"go.uber.org/zap"
)

var tokenFlag = regexp.MustCompile(`(--csrf_token[= ]+)(\S+)`)

// Redact masks CSRF token values in process command lines.
func Redact(s string) string {
	return tokenFlag.ReplaceAllString(s, "${1}[redacted]")
}

// RedactedString is zap.String with token values masked.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, Redact(val))
}
