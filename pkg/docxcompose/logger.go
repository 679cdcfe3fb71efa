package docxcompose

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLogLevel maps a configuration level name to a zap level. "off"
// disables logging entirely.
func ParseLogLevel(level string) (zapcore.Level, bool, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, true, nil
	case "", "info":
		return zapcore.InfoLevel, true, nil
	case "warn", "warning":
		return zapcore.WarnLevel, true, nil
	case "error":
		return zapcore.ErrorLevel, true, nil
	case "off":
		return zapcore.InfoLevel, false, nil
	default:
		return zapcore.InfoLevel, false, fmt.Errorf("invalid log level: %s", level)
	}
}

// NewLogger builds a console-encoded zap logger writing to w at the given
// level. A nil writer logs to stderr.
func NewLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, enabled, err := ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return zap.NewNop(), nil
	}
	if w == nil {
		w = os.Stderr
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		lvl,
	)
	return zap.New(core), nil
}

// loggerFromConfig never fails: an unusable level falls back to a no-op
// logger since Validate reports the problem separately.
func loggerFromConfig(cfg *Config) *zap.Logger {
	l, err := NewLogger(cfg.LogLevel, nil)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
