package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any software system. These codes provide the foundation layer
// of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations: opening,
	// reading, writing, or syncing a segment file.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents caller errors where the supplied
	// configuration or arguments don't meet the cache's requirements.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected failures that don't fit into
	// any other category.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Record-specific error codes cover the ways a decoded record can fail to
// satisfy the on-disk format's invariants.
const (
	// ErrorCodeRecordMalformed indicates a header failed validation: an
	// unknown status byte, a non-positive tlen, or vlen+dlen exceeding tlen.
	ErrorCodeRecordMalformed ErrorCode = "RECORD_MALFORMED"

	// ErrorCodeRecordOIDMismatch indicates the oid read at an indexed
	// offset doesn't match the key that pointed to it — a stale index entry.
	ErrorCodeRecordOIDMismatch ErrorCode = "RECORD_OID_MISMATCH"
)

// Segment-specific error codes cover the segment file's lifecycle.
const (
	// ErrorCodeSegmentIO indicates a failure opening, reading from, or
	// writing to a segment file.
	ErrorCodeSegmentIO ErrorCode = "SEGMENT_IO"

	// ErrorCodeSegmentBadMagic indicates a segment file's header did not
	// start with the expected 4-byte magic.
	ErrorCodeSegmentBadMagic ErrorCode = "SEGMENT_BAD_MAGIC"

	// ErrorCodeSegmentResetFailed indicates rotation could not reset the
	// newly-active segment to an empty, magic-only file.
	ErrorCodeSegmentResetFailed ErrorCode = "SEGMENT_RESET_FAILED"
)
