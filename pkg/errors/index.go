package errors

// IndexError is a specialized error type for key directory operations.
// It carries the key involved and the operation being performed, which is
// the context a caller needs to act on a lookup failure.
type IndexError struct {
	*baseError
	key       string // The key being processed when the error occurred.
	operation string // The index operation being performed: get, put, remove.
}

// NewIndexError creates a new index-specific error.
func NewIndexError(err error, code ErrorCode, msg string) *IndexError {
	return &IndexError{baseError: NewBaseError(err, code, msg)}
}

// WithKey records the key involved in the failed operation. Keys are opaque
// bytes; they are stored as a string here only for reporting.
func (ie *IndexError) WithKey(key []byte) *IndexError {
	ie.key = string(key)
	return ie
}

// WithOperation records which index operation failed.
func (ie *IndexError) WithOperation(op string) *IndexError {
	ie.operation = op
	return ie
}

// Key returns the key involved in the failed operation.
func (ie *IndexError) Key() string {
	return ie.key
}

// Operation returns the index operation that failed.
func (ie *IndexError) Operation() string {
	return ie.operation
}

// WithMessage updates the error message while preserving the IndexError type.
func (ie *IndexError) WithMessage(msg string) *IndexError {
	ie.baseError.WithMessage(msg)
	return ie
}

// WithCode sets the error code while preserving the IndexError type.
func (ie *IndexError) WithCode(code ErrorCode) *IndexError {
	ie.baseError.WithCode(code)
	return ie
}

// WithDetail adds contextual information while preserving the IndexError type.
func (ie *IndexError) WithDetail(key string, value any) *IndexError {
	ie.baseError.WithDetail(key, value)
	return ie
}
