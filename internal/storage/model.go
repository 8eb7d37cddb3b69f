package storage

import (
	"sync"

	"go.uber.org/zap"

	"github.com/iamNilotpal/cask/pkg/filesys"
)

// Layer wraps the host file system with the store's notion of an active file
// being appended to and zero or more immutable files. It holds the single
// write cursor for the active file and linearizes every append.
//
// One reader-writer lock guards the mutable interior: the cursor, the active
// handle, and every call into the host implementation that mutates its
// state. The append path takes the writer lock so that observing the cursor,
// writing at it and advancing it form one critical section; positional reads
// share the reader lock and do not block each other.
type Layer struct {
	mu     sync.RWMutex
	fs     filesys.FileSystem
	cursor uint64
	active filesys.Handle
	log    *zap.SugaredLogger
}

// Config holds the parameters needed to construct a Layer.
type Config struct {
	FS     filesys.FileSystem
	Logger *zap.SugaredLogger
}
