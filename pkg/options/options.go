// Package options provides functional-options configuration for the
// persistent cache: the storage tag used to name segment files, the
// optional client tag, the optional var directory, the total size
// budget split across both segments, and the logger used for the
// handful of diagnostic lines the cache emits.
package options

import (
	"strings"

	"go.uber.org/zap"

	"github.com/coriolisdb/zeccache/pkg/errors"
	"github.com/coriolisdb/zeccache/pkg/logger"
)

// Options holds the resolved configuration for a cache instance.
type Options struct {
	// Storage identifies the storage this cache is fronting. It is
	// embedded in segment filenames; an empty tag is valid and
	// matches the original's default.
	Storage string

	// Client, when non-empty, is embedded in segment filenames
	// alongside Storage so multiple clients sharing a var directory
	// get distinct persistent files. When empty the cache uses
	// unnamed temporary segment files instead of persistent ones.
	Client string

	// VarDir is the directory persistent segment files live in. When
	// empty it is resolved at cache construction time via pkg/varpath.
	VarDir string

	// TotalSize is the combined byte budget for both segments; each
	// segment may grow until the cache's running position would
	// exceed half of this value.
	TotalSize int64

	// Logger receives the cache's diagnostic output.
	Logger *zap.SugaredLogger
}

// OptionFunc mutates an Options value under construction.
type OptionFunc func(*Options)

// WithClientTag sets the client tag embedded in persistent segment
// filenames. Leaving it unset means segments are unnamed temp files.
func WithClientTag(client string) OptionFunc {
	return func(o *Options) {
		o.Client = strings.TrimSpace(client)
	}
}

// WithVarDir overrides the directory persistent segment files are
// stored in, bypassing pkg/varpath's fallback resolution.
func WithVarDir(dir string) OptionFunc {
	return func(o *Options) {
		dir = strings.TrimSpace(dir)
		if dir != "" {
			o.VarDir = dir
		}
	}
}

// WithTotalSize sets the combined byte budget for both segments.
// Values outside [MinTotalSize, MaxTotalSize] are ignored, leaving
// the previous value (by default DefaultTotalSize) in place.
func WithTotalSize(size int64) OptionFunc {
	return func(o *Options) {
		if size >= MinTotalSize && size <= MaxTotalSize {
			o.TotalSize = size
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *zap.SugaredLogger) OptionFunc {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// New builds an Options value for the given storage tag, applying
// opts over the defaults.
func New(storage string, opts ...OptionFunc) (Options, error) {
	o := Options{
		Storage:   strings.TrimSpace(storage),
		Client:    DefaultClientTag,
		TotalSize: DefaultTotalSize,
		Logger:    logger.New("zeccache"),
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.TotalSize < MinTotalSize || o.TotalSize > MaxTotalSize {
		return Options{}, errors.NewConfigError(errors.ErrorCodeInvalidInput, "total size out of range").
			WithField("TotalSize").
			WithProvided(o.TotalSize)
	}

	return o, nil
}
