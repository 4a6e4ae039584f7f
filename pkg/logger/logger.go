// Package logger provides the structured logger used throughout zeccache.
// It wraps zap the way the rest of the codebase expects to consume one:
// a single *zap.SugaredLogger, tagged with a service name, used via its
// Infow/Warnw/Errorw/Debugw key-value methods.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a development-friendly console logger tagged with service.
// Callers that want production JSON output or a custom zap.Config
// should build their own *zap.SugaredLogger and pass it via
// options.WithLogger instead of calling New.
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build()
	if err != nil {
		// Build only fails on a malformed config; ours is static and
		// known-good, so this indicates a linked zap version mismatch.
		// Fall back to a no-op logger rather than panicking a caller
		// that just wanted a cache.
		return zap.NewNop().Sugar()
	}

	return base.Named(service).Sugar()
}

// Noop returns a logger that discards everything, useful for tests that
// don't want log output cluttering -v runs.
func Noop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
