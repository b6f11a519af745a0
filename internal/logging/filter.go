// Package logging sets up zerolog for poolprobe and keeps credentials out of
// log output.
package logging

import (
	"io"
	"regexp"

	"github.com/rs/zerolog"
)

// RedactedValue replaces sensitive substrings.
const RedactedValue = "[REDACTED]"

var sensitivePatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // compiled once
	// Authorization: Bearer eyJ...
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]{16,}`),
	// JWTs on their own
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]+`),
	// password=..., "password":"...", appkey: ...
	regexp.MustCompile(`(?i)(password|passwd|appkey|consumer_key|client_secret|clientsecret|access_?token|refresh_?token)("?\s*[:=]\s*"?)[^\s",}]+`),
}

// Redact masks every sensitive substring in s.
func Redact(s string) string {
	for i, re := range sensitivePatterns {
		if i == len(sensitivePatterns)-1 {
			s = re.ReplaceAllString(s, "${1}${2}"+RedactedValue)
			continue
		}
		s = re.ReplaceAllString(s, RedactedValue)
	}
	return s
}

// FilteringWriter redacts everything written through it before it reaches the
// underlying writer.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter wraps w.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer. It reports len(p) on success so zerolog does not
// treat a shorter redacted line as a short write.
func (f *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := f.w.Write([]byte(Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SensitiveDataHook flags events whose message carries a credential. Field
// values are handled by FilteringWriter since a hook cannot rewrite them.
type SensitiveDataHook struct{}

// NewSensitiveDataHook returns the hook.
func NewSensitiveDataHook() SensitiveDataHook {
	return SensitiveDataHook{}
}

// Run implements zerolog.Hook.
func (SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if Redact(msg) != msg {
		e.Bool("redacted", true)
	}
}
