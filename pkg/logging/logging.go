// Package logging builds the zap logger shared by the launcher packages.
package logging

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config returns the console logger configuration. Logs go to stderr so
// stdout stays clean for list output and dry-run commands.
func Config(level string, verbose bool) (zap.Config, error) {
	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if strings.TrimSpace(level) != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
			return zap.Config{}, errors.Wrapf(err, "log level %q", level)
		}
	}
	if verbose {
		lvl.SetLevel(zap.DebugLevel)
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	enc.CallerKey = ""
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return zap.Config{
		Level:             lvl,
		Development:       verbose,
		DisableStacktrace: !verbose,
		Encoding:          "console",
		EncoderConfig:     enc,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}, nil
}

// New builds a logger from Config.
func New(level string, verbose bool) (*zap.Logger, error) {
	cfg, err := Config(level, verbose)
	if err != nil {
		return nil, err
	}
	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
