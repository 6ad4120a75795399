// Package logger holds the process-wide zap logger
package logger

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global sugared logger
	Logger *zap.SugaredLogger

	base *zap.Logger
)

func init() {
	// no-op until Initialize is called so packages can log unconditionally
	base = zap.NewNop()
	Logger = base.Sugar()
}

// Initialize replaces the global logger. jsonOutput selects the production
// JSON encoder, otherwise a development console encoder is used.
func Initialize(level string, jsonOutput bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}

	var config zap.Config
	if jsonOutput {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}

	l, err := config.Build()
	if err != nil {
		return errors.Wrap(err, "failed to build logger")
	}
	Set(l)
	return nil
}

// Set installs l as the global logger
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	base = l
	Logger = l.Sugar()
}

// L returns the global logger in its structured form
func L() *zap.Logger {
	return base
}

// Named returns a child of the global logger
func Named(name string) *zap.Logger {
	return base.Named(name)
}

// Sync flushes buffered log entries
func Sync() {
	_ = base.Sync()
}
