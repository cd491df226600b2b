package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// LevelEnvVar names the environment variable read by the CLI for the log level.
const LevelEnvVar = "POLLGEN_LOG_LEVEL"

// ParseLevel parses a case-insensitive level name, falling back to def.
func ParseLevel(s string, def zapcore.Level) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return def
	}
}
