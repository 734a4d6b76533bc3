package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks PII in log attributes.
type Redactor struct {
	sensitiveKeys []string
	patterns      []redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a redactor with the built-in key list and patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		sensitiveKeys: []string{
			"password", "passwd", "secret", "token",
			"api_key", "apikey", "authorization",
			"ssn", "credit_card", "private_key",
		},
		patterns: []redactPattern{
			{
				regex:       regexp.MustCompile(`[a-zA-Z0-9._%+-]+@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`),
				replacement: "***@$1",
			},
			{
				regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
				replacement: "Bearer ***",
			},
			{
				regex:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
				replacement: "***-**-****",
			},
		},
	}
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if r.isSensitiveKey(a.Key) {
		return slog.String(a.Key, "***")
	}
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	}
	return a
}

func (r *Redactor) isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range r.sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
