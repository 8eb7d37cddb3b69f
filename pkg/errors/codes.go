package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any part of the store. These codes provide the foundation layer
// of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations at any system
	// boundary: reading or writing data files, flushing to stable storage,
	// creating the store directory, or a short write reported by the host
	// file system.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents caller-side errors where the provided
	// data doesn't meet the system's requirements or constraints. It indicates
	// a problem with the request itself rather than a system failure.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected system failures that don't fit
	// into other categories: bugs, assertion failures, or other programming
	// errors that shouldn't occur during normal operation.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Storage-specific error codes extend the base taxonomy with the failure
// modes of the on-disk log.
const (
	// ErrorCodeCorruption indicates that a decoded record header is
	// structurally invalid or inconsistent with the index entry that led to
	// it, for instance a zero key size or a read running past end-of-file
	// where the index implied a complete record. Corruption is fatal to the
	// current operation only; the store keeps serving other keys.
	ErrorCodeCorruption ErrorCode = "CORRUPTION"

	// ErrorCodeRecoveryFailed indicates that rebuilding the in-memory index
	// from the files on disk was unsuccessful during open.
	ErrorCodeRecoveryFailed ErrorCode = "RECOVERY_FAILED"

	// ErrorCodePermissionDenied indicates insufficient permissions to access a
	// file or the store directory. Distinct from generic IO errors because it
	// has a specific resolution path on the operator's side.
	ErrorCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrorCodeDiskFull indicates that the storage device has run out of space.
	ErrorCodeDiskFull ErrorCode = "DISK_FULL"

	// ErrorCodeFilesystemReadonly indicates that the filesystem is mounted
	// read-only and appends cannot proceed.
	ErrorCodeFilesystemReadonly ErrorCode = "FILESYSTEM_READONLY"

	// ErrorCodeUnknownHandle indicates a read or write against a file handle
	// the file layer doesn't know about.
	ErrorCodeUnknownHandle ErrorCode = "UNKNOWN_FILE_HANDLE"
)

// Codec and index error codes cover the record encoding bounds and key
// lookup failures surfaced through the public operations.
const (
	// ErrorCodeKeyNotFound indicates the requested key is absent from the
	// index. Surfaced only by reads.
	ErrorCodeKeyNotFound ErrorCode = "KEY_NOT_FOUND"

	// ErrorCodeCodec indicates a caller-supplied key or value exceeded the
	// record format's size bounds.
	ErrorCodeCodec ErrorCode = "CODEC_ERROR"

	// ErrorCodeTimeSource indicates the host clock failed to produce a
	// timestamp for a write.
	ErrorCodeTimeSource ErrorCode = "TIME_SOURCE_ERROR"
)
