package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor scrubs credentials and personal data from log output.
// Event metadata is free-form, so anything a host attaches may reach the logs.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a new redactor with default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// Email addresses
			regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),

			// Bearer tokens
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._~+/=-]+`),

			// key=value credentials in URLs and query strings
			regexp.MustCompile(`(?i)\b(token|access_token|api_key|apikey|secret|password)=[^&\s"]+`),

			// JSON-style credentials
			regexp.MustCompile(`(?i)"(token|api_key|secret|password)"\s*:\s*"[^"]*"`),
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact redacts sensitive information from a string
func (r *Redactor) Redact(s string) string {
	result := s
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			return keepKey(pattern, match)
		})
	}
	return result
}

// keepKey preserves the key of a key=value or "key": match so the line stays readable
func keepKey(pattern *regexp.Regexp, match string) string {
	sub := pattern.FindStringSubmatchIndex(match)
	if len(sub) < 4 || sub[2] < 0 {
		return redacted
	}
	end := sub[3]
	switch {
	case end < len(match) && match[end] == '=':
		return match[:end+1] + redacted
	case end+1 < len(match) && match[end] == '"':
		return match[:end+1] + `:"` + redacted + `"`
	}
	return redacted
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success; callers compare against their own buffer,
// not the shorter or longer redacted copy.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
