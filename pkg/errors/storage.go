package errors

// StorageError is a specialized error type for file layer and log operations.
// It embeds baseError to inherit all the standard error functionality, then
// adds storage-specific fields that help pinpoint exactly where problems
// occurred: which file handle, at which byte offset, on which path.
type StorageError struct {
	*baseError
	handle   uint64 // Which file handle was being accessed when the error occurred.
	offset   uint64 // Byte offset within the file where the problem happened.
	fileName string // Name of the file that caused the issue.
	path     string // Path of the file that caused the issue.
}

// NewStorageError creates a new storage-specific error.
func NewStorageError(err error, code ErrorCode, msg string) *StorageError {
	return &StorageError{baseError: NewBaseError(err, code, msg)}
}

// WithHandle sets which file handle was involved in the error.
func (se *StorageError) WithHandle(h uint64) *StorageError {
	se.handle = h
	return se
}

// WithOffset records the byte position where the error occurred.
func (se *StorageError) WithOffset(offset uint64) *StorageError {
	se.offset = offset
	return se
}

// WithFileName captures which file was being processed when the error occurred.
func (se *StorageError) WithFileName(fileName string) *StorageError {
	se.fileName = fileName
	return se
}

// WithPath captures which path was being processed when the error occurred.
func (se *StorageError) WithPath(path string) *StorageError {
	se.path = path
	return se
}

// WithMessage updates the error message while preserving the StorageError type.
func (se *StorageError) WithMessage(msg string) *StorageError {
	se.baseError.WithMessage(msg)
	return se
}

// WithCode sets the error code while preserving the StorageError type.
func (se *StorageError) WithCode(code ErrorCode) *StorageError {
	se.baseError.WithCode(code)
	return se
}

// WithDetail adds contextual information while preserving the StorageError type.
func (se *StorageError) WithDetail(key string, value any) *StorageError {
	se.baseError.WithDetail(key, value)
	return se
}

// Handle returns the file handle where the error occurred.
func (se *StorageError) Handle() uint64 {
	return se.handle
}

// Offset returns the byte offset within the file where the error happened.
// Combined with Handle, this gives the exact location of the problem.
func (se *StorageError) Offset() uint64 {
	return se.offset
}

// FileName returns the name of the file that was being processed.
func (se *StorageError) FileName() string {
	return se.fileName
}

// Path returns the path of the file that was being processed.
func (se *StorageError) Path() string {
	return se.path
}
