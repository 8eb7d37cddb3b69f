// Package storage implements the file layer: the single component allowed to
// touch the host file system. It owns the active file's write cursor,
// linearizes appends, issues positional reads by file handle, and performs
// rotation when asked.
//
// The layer provides per-operation durability: every append flushes to
// stable storage before returning, so a record acknowledged to the caller
// survives a crash.
package storage

import (
	"fmt"

	"github.com/iamNilotpal/cask/internal/index"
	"github.com/iamNilotpal/cask/pkg/errors"
	"github.com/iamNilotpal/cask/pkg/filesys"
)

// New constructs a Layer over the given host file system. The cursor starts
// at the active file's current end; recovery repositions it after scanning.
func New(config *Config) (*Layer, error) {
	if config == nil || config.FS == nil || config.Logger == nil {
		return nil, fmt.Errorf("invalid configuration")
	}

	active := config.FS.Active()
	size, err := config.FS.FileSize(active)
	if err != nil {
		return nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to size the active file",
		).WithHandle(uint64(active))
	}

	return &Layer{
		fs:     config.FS,
		cursor: size,
		active: active,
		log:    config.Logger,
	}, nil
}

// Append writes the whole record to the active file at the current cursor,
// flushes, advances the cursor and returns the locator for the new record.
// Concurrent appends receive strictly increasing, non-overlapping offsets.
func (l *Layer) Append(record []byte, valueSize uint32, timestamp uint64) (index.Locator, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	active := l.active
	start := l.cursor

	written := 0
	for written < len(record) {
		n, err := l.fs.WriteAt(active, record[written:], start+uint64(written))
		if err != nil {
			return index.Locator{}, errors.NewStorageError(
				err, errors.ErrorCodeIO, "Failed to append record",
			).WithHandle(uint64(active)).WithOffset(start)
		}
		if n == 0 {
			return index.Locator{}, errors.NewStorageError(
				nil, errors.ErrorCodeIO, "Host file system made no progress on write",
			).WithHandle(uint64(active)).WithOffset(start + uint64(written))
		}
		written += n
	}

	if err := l.fs.Flush(active); err != nil {
		return index.Locator{}, errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to flush the active file",
		).WithHandle(uint64(active))
	}

	l.cursor += uint64(len(record))

	return index.Locator{
		Handle:    active,
		Offset:    start,
		ValueSize: valueSize,
		Timestamp: timestamp,
	}, nil
}

// ReadExact reads exactly length bytes at the given offset from the named
// file.
func (l *Layer) ReadExact(h filesys.Handle, offset uint64, length int) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	buf := make([]byte, length)
	if err := l.fs.ReadExactAt(h, buf, offset); err != nil {
		if se, ok := errors.AsStorageError(err); ok && se.Code() == errors.ErrorCodeUnknownHandle {
			return nil, err
		}
		return nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to read from data file",
		).WithHandle(uint64(h)).WithOffset(offset).WithDetail("length", length)
	}
	return buf, nil
}

// ActiveHandle returns the handle currently receiving appends.
func (l *Layer) ActiveHandle() filesys.Handle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// ActiveSize returns the write cursor: the sum of the lengths of all records
// appended to the current active file since it became active.
func (l *Layer) ActiveSize() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cursor
}

// UpdateCursor positions the write cursor. Only recovery calls this, after
// scanning the active file to the last complete record.
func (l *Layer) UpdateCursor(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursor = n
}

// RotateActive closes the current active file as an immutable handle and
// opens a fresh active file of size zero under a new handle, resetting the
// cursor. Rotating an already empty active file is a no-op; two writers that
// both cross the size threshold must not leave an empty immutable behind.
func (l *Layer) RotateActive() (filesys.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor == 0 {
		return l.active, nil
	}

	retired := l.active
	h, err := l.fs.NewActive()
	if err != nil {
		return filesys.NoHandle, errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to rotate the active file",
		).WithHandle(uint64(retired))
	}

	l.active = h
	l.cursor = 0

	l.log.Infow("Rotated active file", "retired", retired, "active", h)
	return h, nil
}

// FileSize returns the on-disk size of the named file.
func (l *Layer) FileSize(h filesys.Handle) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fs.FileSize(h)
}

// Immutables returns the handles of every file not currently active, in
// ascending handle order. Handle order matches creation order, which is the
// replay order recovery relies on.
func (l *Layer) Immutables() []filesys.Handle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fs.Immutables()
}

// NewMergeTarget creates a fresh immutable file to receive compacted
// records.
func (l *Layer) NewMergeTarget() (filesys.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs.NewMergeTarget()
}

// WriteTo writes p at the given offset of an immutable file. The compaction
// worker owns the offsets it writes at; the layer only serializes the call
// against other mutations.
func (l *Layer) WriteTo(h filesys.Handle, p []byte, offset uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	written := 0
	for written < len(p) {
		n, err := l.fs.WriteAt(h, p[written:], offset+uint64(written))
		if err != nil {
			return errors.NewStorageError(
				err, errors.ErrorCodeIO, "Failed to write to merge target",
			).WithHandle(uint64(h)).WithOffset(offset + uint64(written))
		}
		if n == 0 {
			return errors.NewStorageError(
				nil, errors.ErrorCodeIO, "Host file system made no progress on write",
			).WithHandle(uint64(h)).WithOffset(offset + uint64(written))
		}
		written += n
	}
	return nil
}

// FlushFile forces the named file onto stable storage.
func (l *Layer) FlushFile(h filesys.Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs.Flush(h)
}

// Remove destroys an immutable file and its hint sidecar.
func (l *Layer) Remove(h filesys.Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h == l.active {
		return errors.NewStorageError(
			nil, errors.ErrorCodeInvalidInput, "Cannot remove the active file",
		).WithHandle(uint64(h))
	}
	return l.fs.Remove(h)
}

// WriteHint atomically replaces the hint sidecar of the named file.
func (l *Layer) WriteHint(h filesys.Handle, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs.WriteHint(h, data)
}

// ReadHint returns the hint sidecar of the named file, reporting false when
// none exists.
func (l *Layer) ReadHint(h filesys.Handle) ([]byte, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fs.ReadHint(h)
}

// Close releases the host file system.
func (l *Layer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs.Close()
}
