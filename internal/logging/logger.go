// Package logging builds the zap loggers shared by the planner commands.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps debug|info|warn|error to a zap level; anything else is info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a logger writing JSON to stdout, or human-readable console
// output when format is "console". The logger carries service_name and
// hostname fields.
func New(level, format, service string) (*zap.Logger, error) {
	return NewTo(level, format, service, "stdout")
}

// NewTo is New writing to output ("stdout", "stderr" or a file path).
func NewTo(level, format, service, output string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.OutputPaths = []string{output}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return decorate(logger, service), nil
}

func decorate(logger *zap.Logger, service string) *zap.Logger {
	if service != "" {
		logger = logger.With(zap.String("service_name", service))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		logger = logger.With(zap.String("hostname", hostname))
	}
	return logger
}
