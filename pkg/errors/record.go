package errors

// RecordError provides specialized error handling for record decode and
// validation failures: a malformed header or a stale index entry whose
// oid doesn't match what's on disk at the indexed offset.
type RecordError struct {
	*baseError
	oid       string // hex-encoded oid, empty if not yet known.
	operation string // the operation that raised it, e.g. "ReadHeader" or "ReadRecord".
}

// NewRecordError creates a new record-specific error.
func NewRecordError(err error, code ErrorCode, msg string) *RecordError {
	return &RecordError{baseError: NewBaseError(err, code, msg)}
}

func (re *RecordError) WithMessage(msg string) *RecordError {
	re.baseError.WithMessage(msg)
	return re
}

func (re *RecordError) WithCode(code ErrorCode) *RecordError {
	re.baseError.WithCode(code)
	return re
}

func (re *RecordError) WithDetail(key string, value any) *RecordError {
	re.baseError.WithDetail(key, value)
	return re
}

// WithOID records which oid was being processed.
func (re *RecordError) WithOID(oid string) *RecordError {
	re.oid = oid
	return re
}

// WithOperation records which cache operation triggered the error.
func (re *RecordError) WithOperation(operation string) *RecordError {
	re.operation = operation
	return re
}

// OID returns the hex-encoded oid associated with the error.
func (re *RecordError) OID() string {
	return re.oid
}

// Operation returns the operation that was being performed.
func (re *RecordError) Operation() string {
	return re.operation
}
