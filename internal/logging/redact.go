package logging

import (
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

const Redacted = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._~+/=-]+`),
	regexp.MustCompile(`(?i)\b(token|api_key|apikey|secret|password)(\s*[:=]\s*)[^\s,;&"]+`),
}

var sensitiveKeys = []string{"authorization", "token", "api_key", "apikey", "secret", "password"}

// Redact replaces bearer credentials and key=value secrets in s.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = secretPatterns[0].ReplaceAllString(s, "Bearer "+Redacted)
	s = secretPatterns[1].ReplaceAllString(s, "${1}${2}"+Redacted)
	return s
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

type redactingCore struct {
	zapcore.Core
}

// NewRedactingCore wraps core so that messages and string/error fields are
// scrubbed before encoding.
func NewRedactingCore(core zapcore.Core) zapcore.Core {
	return &redactingCore{Core: core}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = Redact(ent.Message)
	return c.Core.Write(ent, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch {
		case isSensitiveKey(f.Key) && (f.Type == zapcore.StringType || f.Type == zapcore.StringerType):
			f = zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: Redacted}
		case f.Type == zapcore.StringType:
			f.String = Redact(f.String)
		case f.Type == zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				f = zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: Redact(err.Error())}
			}
		}
		out[i] = f
	}
	return out
}
