// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type configurator struct {
	level  string
	format string
	output zapcore.WriteSyncer
}

type Option func(*configurator)

func SetLevel(level string) Option {
	return func(c *configurator) {
		if level != "" {
			c.level = level
		}
	}
}

// SetFormat selects the console or json encoder.
func SetFormat(format string) Option {
	return func(c *configurator) {
		if format != "" {
			c.format = format
		}
	}
}

func SetOutput(w zapcore.WriteSyncer) Option {
	return func(c *configurator) {
		c.output = w
	}
}

func New(options ...Option) (*zap.Logger, error) {
	cfg := configurator{
		level:  "info",
		format: FormatConsole,
		output: zapcore.Lock(os.Stdout),
	}
	for _, opt := range options {
		opt(&cfg)
	}

	level, err := zap.ParseAtomicLevel(cfg.level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	var encoder zapcore.Encoder
	switch cfg.format {
	case FormatConsole:
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	case FormatJSON:
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "timestamp"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.format)
	}

	core := zapcore.NewCore(encoder, cfg.output, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
