package errors

// SegmentError is a specialized error type for segment-file operations:
// opening, appending, invalidating, resetting, or peeking a segment.
type SegmentError struct {
	*baseError
	segmentIndex int    // 0 or 1 — which of the two segments was involved.
	offset       int64  // byte offset within the segment where the problem happened.
	path         string // path of the segment file, empty for unnamed temp segments.
}

// NewSegmentError creates a new segment-specific error.
func NewSegmentError(err error, code ErrorCode, msg string) *SegmentError {
	return &SegmentError{baseError: NewBaseError(err, code, msg)}
}

// Overrides to keep the fluent chain typed as *SegmentError.

func (se *SegmentError) WithMessage(msg string) *SegmentError {
	se.baseError.WithMessage(msg)
	return se
}

func (se *SegmentError) WithCode(code ErrorCode) *SegmentError {
	se.baseError.WithCode(code)
	return se
}

func (se *SegmentError) WithDetail(key string, value any) *SegmentError {
	se.baseError.WithDetail(key, value)
	return se
}

// WithSegmentIndex records which segment (0 or 1) the error concerns.
func (se *SegmentError) WithSegmentIndex(idx int) *SegmentError {
	se.segmentIndex = idx
	return se
}

// WithOffset records the byte position where the error occurred.
func (se *SegmentError) WithOffset(offset int64) *SegmentError {
	se.offset = offset
	return se
}

// WithPath records the segment file's path.
func (se *SegmentError) WithPath(path string) *SegmentError {
	se.path = path
	return se
}

// SegmentIndex returns the affected segment's index.
func (se *SegmentError) SegmentIndex() int {
	return se.segmentIndex
}

// Offset returns the byte offset at which the error occurred.
func (se *SegmentError) Offset() int64 {
	return se.offset
}

// Path returns the segment file's path.
func (se *SegmentError) Path() string {
	return se.path
}
