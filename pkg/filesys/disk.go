package filesys

import (
	"bytes"
	stdErrors "errors"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/natefinch/atomic"

	"github.com/iamNilotpal/cask/pkg/errors"
)

// Disk implements FileSystem on top of a real directory. One directory holds
// one store: an active.db receiving appends plus zero or more
// immutable-<handle>.db files and their optional .hint sidecars.
//
// Disk keeps an open *os.File per handle. Handle numbers restart on every
// open: pre-existing immutable files reclaim the handle embedded in their
// name, and the active file takes the next number above them. Rotation
// renames active.db into immutable-<handle>.db, so a file's name records the
// handle it held while it was being written.
type Disk struct {
	dir    string
	next   uint64
	active Handle
	files  map[Handle]*os.File
	names  map[Handle]string
}

// NewDisk opens the store directory at dir, creating it if absent, and
// registers every file already present: immutable files as read-only
// handles, the active file (created empty when missing) as the append
// target.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.ClassifyDirectoryCreationError(err, dir)
	}

	d := &Disk{
		dir:   dir,
		next:  1,
		files: make(map[Handle]*os.File),
		names: make(map[Handle]string),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to read store directory",
		).WithPath(dir)
	}

	for _, entry := range entries {
		h, ok := ParseImmutableName(entry.Name())
		if !ok {
			continue
		}

		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			d.closeAll()
			return nil, errors.NewStorageError(
				err, errors.ErrorCodeIO, "Failed to open immutable file",
			).WithFileName(entry.Name()).WithPath(dir)
		}

		d.files[h] = f
		d.names[h] = entry.Name()
		if uint64(h) >= d.next {
			d.next = uint64(h) + 1
		}
	}

	activePath := filepath.Join(dir, ActiveFileName)
	f, err := os.OpenFile(activePath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		d.closeAll()
		return nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to open active file",
		).WithFileName(ActiveFileName).WithPath(activePath)
	}

	h := d.allocate()
	d.files[h] = f
	d.names[h] = ActiveFileName
	d.active = h

	return d, nil
}

func (d *Disk) allocate() Handle {
	h := Handle(d.next)
	d.next++
	return h
}

func (d *Disk) lookup(h Handle) (*os.File, error) {
	f, ok := d.files[h]
	if !ok {
		return nil, errors.NewStorageError(
			nil, errors.ErrorCodeUnknownHandle, "No file bound to handle",
		).WithHandle(uint64(h))
	}
	return f, nil
}

// WriteAt writes p at offset off in the file bound to h.
func (d *Disk) WriteAt(h Handle, p []byte, off uint64) (int, error) {
	f, err := d.lookup(h)
	if err != nil {
		return 0, err
	}
	return f.WriteAt(p, int64(off))
}

// ReadExactAt fills p from offset off in the file bound to h. A short read
// surfaces as io.ErrUnexpectedEOF or io.EOF from the underlying file.
func (d *Disk) ReadExactAt(h Handle, p []byte, off uint64) error {
	f, err := d.lookup(h)
	if err != nil {
		return err
	}

	n, err := f.ReadAt(p, int64(off))
	if err != nil {
		return err
	}
	if n < len(p) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// FileSize returns the size of the file bound to h.
func (d *Disk) FileSize(h Handle) (uint64, error) {
	f, err := d.lookup(h)
	if err != nil {
		return 0, err
	}

	stat, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(stat.Size()), nil
}

// Flush fsyncs the file bound to h.
func (d *Disk) Flush(h Handle) error {
	f, err := d.lookup(h)
	if err != nil {
		return err
	}
	return f.Sync()
}

// Active returns the handle of the current append target.
func (d *Disk) Active() Handle {
	return d.active
}

// NewActive retires active.db under its handle's immutable name and creates a
// fresh active.db bound to a new handle. The retired file keeps its handle;
// the open descriptor follows the rename.
func (d *Disk) NewActive() (Handle, error) {
	oldName := ImmutableName(d.active)
	oldPath := filepath.Join(d.dir, oldName)

	if err := os.Rename(filepath.Join(d.dir, ActiveFileName), oldPath); err != nil {
		return NoHandle, errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to retire active file",
		).WithFileName(oldName).WithPath(oldPath)
	}
	d.names[d.active] = oldName

	f, err := os.OpenFile(filepath.Join(d.dir, ActiveFileName), os.O_CREATE|os.O_RDWR|os.O_EXCL, 0o644)
	if err != nil {
		return NoHandle, errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to create fresh active file",
		).WithFileName(ActiveFileName).WithPath(d.dir)
	}

	h := d.allocate()
	d.files[h] = f
	d.names[h] = ActiveFileName
	d.active = h

	return h, nil
}

// Immutables returns every non-active handle in ascending order.
func (d *Disk) Immutables() []Handle {
	handles := make([]Handle, 0, len(d.files)-1)
	for h := range d.files {
		if h != d.active {
			handles = append(handles, h)
		}
	}
	slices.Sort(handles)
	return handles
}

// NewMergeTarget creates an empty immutable file under a fresh handle to
// receive compacted records.
func (d *Disk) NewMergeTarget() (Handle, error) {
	h := d.allocate()
	name := ImmutableName(h)
	path := filepath.Join(d.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0o644)
	if err != nil {
		d.next--
		return NoHandle, errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to create merge target",
		).WithFileName(name).WithPath(path)
	}

	d.files[h] = f
	d.names[h] = name
	return h, nil
}

// Remove destroys the file bound to h and its hint sidecar.
func (d *Disk) Remove(h Handle) error {
	if h == d.active {
		return errors.NewStorageError(
			nil, errors.ErrorCodeInvalidInput, "Cannot remove the active file",
		).WithHandle(uint64(h))
	}

	f, err := d.lookup(h)
	if err != nil {
		return err
	}

	name := d.names[h]
	_ = f.Close()
	delete(d.files, h)
	delete(d.names, h)

	path := filepath.Join(d.dir, name)
	if err := os.Remove(path); err != nil && !stdErrors.Is(err, os.ErrNotExist) {
		return errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to remove data file",
		).WithFileName(name).WithPath(path)
	}
	if err := os.Remove(HintName(path)); err != nil && !stdErrors.Is(err, os.ErrNotExist) {
		return errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to remove hint file",
		).WithFileName(HintName(name)).WithPath(HintName(path))
	}

	return nil
}

// WriteHint atomically replaces the hint sidecar of the file bound to h. The
// write goes through a temp file plus rename so a crash never leaves a
// truncated hint visible.
func (d *Disk) WriteHint(h Handle, data []byte) error {
	name, ok := d.names[h]
	if !ok {
		return errors.NewStorageError(
			nil, errors.ErrorCodeUnknownHandle, "No file bound to handle",
		).WithHandle(uint64(h))
	}

	path := HintName(filepath.Join(d.dir, name))
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to write hint file",
		).WithFileName(HintName(name)).WithPath(path)
	}
	return nil
}

// ReadHint returns the hint sidecar of the file bound to h, reporting false
// when none exists.
func (d *Disk) ReadHint(h Handle) ([]byte, bool, error) {
	name, ok := d.names[h]
	if !ok {
		return nil, false, errors.NewStorageError(
			nil, errors.ErrorCodeUnknownHandle, "No file bound to handle",
		).WithHandle(uint64(h))
	}

	path := HintName(filepath.Join(d.dir, name))
	data, err := os.ReadFile(path)
	if stdErrors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewStorageError(
			err, errors.ErrorCodeIO, "Failed to read hint file",
		).WithFileName(HintName(name)).WithPath(path)
	}
	return data, true, nil
}

// Close releases every open descriptor.
func (d *Disk) Close() error {
	return d.closeAll()
}

func (d *Disk) closeAll() error {
	var firstErr error
	for h, f := range d.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.files, h)
		delete(d.names, h)
	}
	return firstErr
}
