// Package errors provides the structured error types used across the store.
//
// The error system is built around a hierarchical structure that starts with a
// foundational baseError and extends into domain-specific error types. This
// design maintains consistency across all error types while allowing
// specialized context for different domains: a codec error needs to know which
// size bound was violated, a storage error needs to know which file and byte
// offset were involved, an index error needs to know which key was being
// processed. By capturing this domain-specific context at the point of
// failure, the system enables much more targeted handling throughout the
// application stack.
//
// Central to the package is an error code taxonomy that provides standardized
// categorization of failures. Codes enable programmatic error handling that
// doesn't rely on parsing error messages, provide consistent categorization
// for monitoring, and separate error identification from error presentation.
package errors

import (
	stdErrors "errors"
	"os"
	"syscall"
)

// IsNotFound reports whether err indicates a key lookup that found nothing.
// This is the one error a reader is expected to branch on, so it gets its own
// predicate.
//
// Example usage:
//
//	value, err := store.Get(key)
//	if errors.IsNotFound(err) {
//	    // Key was deleted or never written.
//	}
func IsNotFound(err error) bool {
	if ie, ok := AsIndexError(err); ok {
		return ie.Code() == ErrorCodeKeyNotFound
	}
	return false
}

// IsCorruption reports whether err indicates a structurally invalid record on
// disk. Corruption is fatal to the operation that hit it but not to the
// store; other keys remain readable.
func IsCorruption(err error) bool {
	if se, ok := AsStorageError(err); ok {
		return se.Code() == ErrorCodeCorruption
	}
	return false
}

// IsCodecError checks if the given error is a CodecError or contains one in
// its error chain.
func IsCodecError(err error) bool {
	var ce *CodecError
	return stdErrors.As(err, &ce)
}

// IsStorageError determines if an error is related to storage operations,
// such as file I/O, disk space issues, or a corrupted record. Storage errors
// often require different handling strategies than other error types because
// they may indicate hardware issues, capacity problems, or data integrity
// concerns that need attention.
func IsStorageError(err error) bool {
	var se *StorageError
	return stdErrors.As(err, &se)
}

// IsIndexError identifies errors that occurred during key directory
// operations such as lookups, upserts, or removals.
func IsIndexError(err error) bool {
	var ie *IndexError
	return stdErrors.As(err, &ie)
}

// AsCodecError safely extracts a CodecError from an error chain, providing
// access to the offending key and value lengths.
func AsCodecError(err error) (*CodecError, bool) {
	var ce *CodecError
	if stdErrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsStorageError extracts StorageError context from an error chain, providing
// access to storage-specific information such as file handles, byte offsets,
// file names, and paths. This context is crucial for implementing recovery
// procedures and for providing detailed information to operators.
func AsStorageError(err error) (*StorageError, bool) {
	var se *StorageError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsIndexError extracts IndexError context, providing access to the key being
// processed and the operation being performed.
func AsIndexError(err error) (*IndexError, bool) {
	var ie *IndexError
	if stdErrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from any error that supports it, or
// returns ErrorCodeInternal for errors that don't have specific codes. This
// function provides a consistent way to categorize errors for monitoring and
// handling purposes.
func GetErrorCode(err error) ErrorCode {
	if ce, ok := AsCodecError(err); ok {
		return ce.Code()
	}

	if se, ok := AsStorageError(err); ok {
		return se.Code()
	}

	if ie, ok := AsIndexError(err); ok {
		return ie.Code()
	}

	return ErrorCodeInternal
}

// GetErrorDetails extracts structured details from any error that supports
// them, returning an empty map for errors without details. This provides
// consistent access to additional error context regardless of the specific
// error type.
func GetErrorDetails(err error) map[string]any {
	if ce, ok := AsCodecError(err); ok {
		if details := ce.Details(); details != nil {
			return details
		}
	}

	if se, ok := AsStorageError(err); ok {
		if details := se.Details(); details != nil {
			return details
		}
	}

	if ie, ok := AsIndexError(err); ok {
		if details := ie.Details(); details != nil {
			return details
		}
	}

	return make(map[string]any)
}

// ClassifyDirectoryCreationError analyzes directory creation failures and
// returns appropriate error codes based on the underlying system error. This
// helps callers understand exactly what went wrong and how they might fix it.
func ClassifyDirectoryCreationError(err error, path string) error {
	if os.IsPermission(err) {
		return NewStorageError(
			err, ErrorCodePermissionDenied,
			"Insufficient permissions to create store directory",
		).WithPath(path).
			WithDetail("operation", "directory_creation").
			WithDetail("required_permission", "write")
	}

	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewStorageError(
					err, ErrorCodeDiskFull,
					"Insufficient disk space to create store directory",
				).WithPath(path).WithDetail("operation", "directory_creation")
			case syscall.EROFS:
				return NewStorageError(
					err, ErrorCodeFilesystemReadonly,
					"Cannot create directory on read-only filesystem",
				).WithPath(path).WithDetail("operation", "directory_creation")
			}
		}
	}

	return NewStorageError(
		err, ErrorCodeIO, "Failed to create store directory",
	).WithPath(path).WithDetail("operation", "directory_creation")
}
