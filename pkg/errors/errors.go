// Package errors defines the cache's error taxonomy: a hierarchical
// structure that starts with a foundational baseError and extends into
// RecordError, SegmentError, and ConfigError, each carrying the
// domain-specific context needed to diagnose a failure without parsing
// message strings. Error codes (codes.go) provide a stable,
// string-keyed classification independent of message wording.
package errors

import (
	stdErrors "errors"
	"os"
	"syscall"
)

// IsRecordError reports whether err is or wraps a *RecordError.
func IsRecordError(err error) bool {
	var re *RecordError
	return stdErrors.As(err, &re)
}

// IsSegmentError reports whether err is or wraps a *SegmentError.
func IsSegmentError(err error) bool {
	var se *SegmentError
	return stdErrors.As(err, &se)
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return stdErrors.As(err, &ce)
}

// AsRecordError extracts a *RecordError from err's chain, if present.
func AsRecordError(err error) (*RecordError, bool) {
	var re *RecordError
	if stdErrors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// AsSegmentError extracts a *SegmentError from err's chain, if present.
func AsSegmentError(err error) (*SegmentError, bool) {
	var se *SegmentError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsConfigError extracts a *ConfigError from err's chain, if present.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if stdErrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from any error produced by this
// package, or ErrorCodeInternal for anything else.
func GetErrorCode(err error) ErrorCode {
	if re, ok := AsRecordError(err); ok {
		return re.Code()
	}
	if se, ok := AsSegmentError(err); ok {
		return se.Code()
	}
	if ce, ok := AsConfigError(err); ok {
		return ce.Code()
	}
	return ErrorCodeInternal
}

// ClassifyFileOpenError turns a raw os error from opening a segment
// file into a *SegmentError with as much context as the underlying
// syscall error offers.
func ClassifyFileOpenError(err error, path string, segmentIndex int) *SegmentError {
	if os.IsPermission(err) {
		return NewSegmentError(err, ErrorCodeSegmentIO, "insufficient permissions to open segment file").
			WithPath(path).
			WithSegmentIndex(segmentIndex).
			WithDetail("suggestion", "check file permissions")
	}

	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewSegmentError(err, ErrorCodeSegmentIO, "insufficient disk space to create segment file").
					WithPath(path).WithSegmentIndex(segmentIndex)
			case syscall.EROFS:
				return NewSegmentError(err, ErrorCodeSegmentIO, "cannot create segment file on read-only filesystem").
					WithPath(path).WithSegmentIndex(segmentIndex)
			}
		}
	}

	return NewSegmentError(err, ErrorCodeSegmentIO, "failed to open segment file").
		WithPath(path).WithSegmentIndex(segmentIndex)
}
