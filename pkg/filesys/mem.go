package filesys

import (
	"io"
	"slices"
	"sync"

	"github.com/iamNilotpal/cask/pkg/errors"
)

// Mem implements FileSystem entirely in memory. It exists for tests: fully
// deterministic, no directory, no syscalls, and it exposes counters the
// property tests assert on. Unlike Disk it guards its own state with a mutex
// so test helpers can inspect it while a store is running on top.
type Mem struct {
	mu     sync.Mutex
	next   uint64
	active Handle
	files  map[Handle][]byte
	hints  map[Handle][]byte
}

// NewMem returns an empty in-memory file system with a fresh active file.
func NewMem() *Mem {
	m := &Mem{
		next:  1,
		files: make(map[Handle][]byte),
		hints: make(map[Handle][]byte),
	}
	m.active = m.allocate()
	m.files[m.active] = nil
	return m
}

func (m *Mem) allocate() Handle {
	h := Handle(m.next)
	m.next++
	return h
}

func (m *Mem) unknown(h Handle) error {
	return errors.NewStorageError(
		nil, errors.ErrorCodeUnknownHandle, "No file bound to handle",
	).WithHandle(uint64(h))
}

// WriteAt writes p at offset off, growing the file with zero bytes if the
// offset lies past the current end.
func (m *Mem) WriteAt(h Handle, p []byte, off uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[h]
	if !ok {
		return 0, m.unknown(h)
	}

	end := int(off) + len(p)
	if end > len(data) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[off:], p)
	m.files[h] = data

	return len(p), nil
}

// ReadExactAt fills p from offset off, failing with io.ErrUnexpectedEOF when
// the file ends before p is full.
func (m *Mem) ReadExactAt(h Handle, p []byte, off uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[h]
	if !ok {
		return m.unknown(h)
	}

	if int(off)+len(p) > len(data) {
		return io.ErrUnexpectedEOF
	}
	copy(p, data[off:])
	return nil
}

// FileSize returns the length of the file bound to h.
func (m *Mem) FileSize(h Handle) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[h]
	if !ok {
		return 0, m.unknown(h)
	}
	return uint64(len(data)), nil
}

// Flush is a no-op; memory is as stable as this file system gets.
func (m *Mem) Flush(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[h]; !ok {
		return m.unknown(h)
	}
	return nil
}

// Active returns the handle of the current append target.
func (m *Mem) Active() Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// NewActive freezes the current active file under its handle and binds a
// fresh empty file as the new append target.
func (m *Mem) NewActive() (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.allocate()
	m.files[h] = nil
	m.active = h
	return h, nil
}

// Immutables returns every non-active handle in ascending order.
func (m *Mem) Immutables() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	handles := make([]Handle, 0, len(m.files)-1)
	for h := range m.files {
		if h != m.active {
			handles = append(handles, h)
		}
	}
	slices.Sort(handles)
	return handles
}

// NewMergeTarget creates an empty immutable file under a fresh handle.
func (m *Mem) NewMergeTarget() (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.allocate()
	m.files[h] = nil
	return h, nil
}

// Remove destroys the file bound to h and its hint, if any.
func (m *Mem) Remove(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h == m.active {
		return errors.NewStorageError(
			nil, errors.ErrorCodeInvalidInput, "Cannot remove the active file",
		).WithHandle(uint64(h))
	}
	if _, ok := m.files[h]; !ok {
		return m.unknown(h)
	}

	delete(m.files, h)
	delete(m.hints, h)
	return nil
}

// WriteHint replaces the hint sidecar of the file bound to h.
func (m *Mem) WriteHint(h Handle, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[h]; !ok {
		return m.unknown(h)
	}
	m.hints[h] = slices.Clone(data)
	return nil
}

// ReadHint returns the hint sidecar of the file bound to h.
func (m *Mem) ReadHint(h Handle) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[h]; !ok {
		return nil, false, m.unknown(h)
	}
	data, ok := m.hints[h]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(data), true, nil
}

// Close discards all files.
func (m *Mem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.files)
	clear(m.hints)
	return nil
}

// NumFiles reports how many data files currently exist, the active file
// included. Rotation and compaction tests assert on this.
func (m *Mem) NumFiles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// FileBytes returns a copy of the raw contents of the file bound to h, or
// nil when the handle is unknown. Test-only inspection.
func (m *Mem) FileBytes(h Handle) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.files[h])
}
