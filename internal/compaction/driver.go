package compaction

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iamNilotpal/cask/internal/index"
	"github.com/iamNilotpal/cask/internal/record"
	"github.com/iamNilotpal/cask/internal/storage"
	"github.com/iamNilotpal/cask/pkg/clock"
	"github.com/iamNilotpal/cask/pkg/filesys"
)

// Driver performs the I/O and clock reads on behalf of the state machine.
// One Driver is shared by every compaction worker; each worker runs its own
// Machine, and the shared claim table keeps two workers off the same file.
//
// The classification itself lives in the Machine. The driver's job is
// mechanical: walk the claimed file record by record, answer CheckKey from
// the index, copy live records into a merge target, relink the index entry
// to the copy, accumulate hint records, and retire fully copied source
// files. Records that fail to decode are logged and the rest of that file is
// left in place; the pass carries on with the next file.
type Driver struct {
	layer    *storage.Layer
	idx      *index.Index
	clk      clock.Clock
	log      *zap.SugaredLogger
	dormancy uint64
	quit     <-chan struct{}

	mu      sync.Mutex
	claimed map[filesys.Handle]bool // files some worker is walking
	targets map[filesys.Handle]bool // merge targets of in-flight passes
}

// DriverConfig holds the collaborators a Driver works against.
type DriverConfig struct {
	Layer    *storage.Layer
	Index    *index.Index
	Clock    clock.Clock
	Logger   *zap.SugaredLogger
	Dormancy time.Duration
	Quit     <-chan struct{}
}

// NewDriver constructs a Driver.
func NewDriver(config *DriverConfig) *Driver {
	dormancy := uint64(config.Dormancy / time.Second)
	if dormancy == 0 {
		dormancy = 1
	}

	return &Driver{
		layer:    config.Layer,
		idx:      config.Index,
		clk:      config.Clock,
		log:      config.Logger,
		dormancy: dormancy,
		quit:     config.Quit,
		claimed:  make(map[filesys.Handle]bool),
		targets:  make(map[filesys.Handle]bool),
	}
}

// walk is the per-worker cursor into the current pass: the file being
// scanned, the merge target receiving copies, the hint records accumulated
// for it, and the locators of the most recent copy awaiting its hint.
type walk struct {
	file   filesys.Handle
	offset uint64
	size   uint64
	active bool
	failed bool // keep the source file; something in it did not copy

	target    filesys.Handle
	targetOff uint64
	dirty     bool // target has unflushed copies
	hint      []byte

	lastOld index.Locator
	lastNew index.Locator
	lastOK  bool
}

// Loop runs compaction passes until the quit channel closes. Intended to be
// submitted to the worker pool once per worker.
func (d *Driver) Loop() {
	m := NewMachine(d.dormancy)
	w := &walk{}

	for {
		select {
		case <-d.quit:
			d.abandon(w)
			return
		default:
		}

		op, ok := m.PollOperation()
		if !ok {
			if deadline, waiting := m.PollDeadline(); waiting {
				if !d.sleepUntil(deadline) {
					d.abandon(w)
					return
				}
				if now, err := d.clk.Now(); err == nil {
					m.OnDeadline(now)
				}
				continue
			}
			d.feed(m, w)
			continue
		}

		d.execute(m, w, op)
	}
}

// RunOnce drives a single compaction pass to quiescence on the calling
// goroutine. Used for forced merges and throughout the tests.
func (d *Driver) RunOnce() {
	m := NewMachine(d.dormancy)
	w := &walk{}

	for {
		op, ok := m.PollOperation()
		if !ok {
			if _, waiting := m.PollDeadline(); waiting {
				return
			}
			d.feed(m, w)
			continue
		}
		d.execute(m, w, op)
	}
}

// sleepUntil blocks until the given instant or until quit closes, reporting
// false on quit. A failing clock paces the retry instead of spinning.
func (d *Driver) sleepUntil(deadline uint64) bool {
	now, err := d.clk.Now()
	if err != nil {
		select {
		case <-d.quit:
			return false
		case <-time.After(time.Second):
			return true
		}
	}
	if now >= deadline {
		return true
	}

	timer := time.NewTimer(time.Duration(deadline-now) * time.Second)
	defer timer.Stop()

	select {
	case <-d.quit:
		return false
	case <-timer.C:
		return true
	}
}

// feed reads the next record of the claimed file and hands it to the
// machine, or reports the file or the pass as finished.
func (d *Driver) feed(m *Machine, w *walk) {
	if !w.active {
		m.HandleFileDone()
		return
	}

	if w.offset+record.HeaderLen > w.size {
		d.finishFile(m, w)
		return
	}

	headerBytes, err := d.layer.ReadExact(w.file, w.offset, record.HeaderLen)
	if err != nil {
		d.log.Errorw("Failed to read record header during compaction",
			"handle", w.file, "offset", w.offset, "error", err)
		w.failed = true
		d.finishFile(m, w)
		return
	}

	header, err := record.DecodeHeader(headerBytes)
	if err != nil || !header.Valid() {
		// Without a sane header there is no record length to skip by; the
		// rest of this file is unreadable. Leave it in place.
		d.log.Errorw("Undecodable record during compaction, leaving file in place",
			"handle", w.file, "offset", w.offset)
		w.failed = true
		d.finishFile(m, w)
		return
	}

	recordLen := uint64(header.RecordLen())
	if w.offset+recordLen > w.size {
		// Trailing partial write from a prior crash.
		d.finishFile(m, w)
		return
	}

	recordBytes, err := d.layer.ReadExact(w.file, w.offset, int(recordLen))
	if err != nil {
		d.log.Errorw("Failed to read record during compaction",
			"handle", w.file, "offset", w.offset, "error", err)
		w.failed = true
		d.finishFile(m, w)
		return
	}

	key := recordBytes[record.HeaderLen : record.HeaderLen+int(header.KeySize)]
	m.HandleEntry(Entry{
		Header: header,
		Key:    key,
		Record: recordBytes,
		File:   w.file,
		Offset: w.offset,
	})

	w.offset += recordLen
}

func (d *Driver) execute(m *Machine, w *walk, op Operation) {
	switch op.Kind {
	case KindOpenNext:
		if h, size, ok := d.claim(); ok {
			w.file = h
			w.offset = 0
			w.size = size
			w.active = true
			w.failed = false
			return
		}
		d.finishPass(w)
		now, err := d.clk.Now()
		if err != nil {
			d.log.Errorw("Clock failed at end of compaction pass", "error", err)
		}
		m.HandleEnd(now)

	case KindCheckKey:
		loc, ok := d.idx.Get(op.Key)
		if ok && loc.Handle == op.File && loc.Offset == op.Offset && loc.Timestamp == op.Timestamp {
			m.HandleMatch()
		} else {
			m.HandleNoMatch()
		}

	case KindCopyLive:
		d.copyLive(w, op)

	case KindEmitHint:
		if !w.lastOK {
			return
		}
		valueOffset := w.lastNew.Offset + record.HeaderLen + uint64(op.Header.KeySize)
		w.hint = append(w.hint, record.EncodeHint(op.Header, op.Key, valueOffset)...)
		if !d.idx.ReplaceIfCurrent(op.Key, w.lastOld, w.lastNew) {
			// A fresh write landed between the copy and the relink; the
			// newer locator stays and the copy becomes garbage for a later
			// pass.
			d.log.Debugw("Key superseded between copy and relink", "handle", w.file)
		}

	case KindDrop:
		// Superseded, deleted, or a tombstone. Nothing to do.
	}
}

func (d *Driver) copyLive(w *walk, op Operation) {
	w.lastOK = false

	if w.target == filesys.NoHandle {
		target, err := d.layer.NewMergeTarget()
		if err != nil {
			d.log.Errorw("Failed to create merge target", "error", err)
			w.failed = true
			return
		}

		d.mu.Lock()
		d.targets[target] = true
		d.mu.Unlock()

		w.target = target
		w.targetOff = 0
		w.hint = nil
	}

	start := w.targetOff
	if err := d.layer.WriteTo(w.target, op.Record, start); err != nil {
		d.log.Errorw("Failed to copy record to merge target",
			"handle", w.file, "offset", op.Offset, "error", err)
		w.failed = true
		return
	}

	w.targetOff += uint64(len(op.Record))
	w.dirty = true
	w.lastOld = index.Locator{
		Handle:    op.File,
		Offset:    op.Offset,
		ValueSize: op.Header.ValueSize,
		Timestamp: op.Timestamp,
	}
	w.lastNew = index.Locator{
		Handle:    w.target,
		Offset:    start,
		ValueSize: op.Header.ValueSize,
		Timestamp: op.Timestamp,
	}
	w.lastOK = true
}

// finishFile flushes the copies taken so far, retires the source file when
// every record in it was accounted for, and moves the machine to the next
// file.
func (d *Driver) finishFile(m *Machine, w *walk) {
	if w.target != filesys.NoHandle && w.dirty {
		if err := d.layer.FlushFile(w.target); err != nil {
			d.log.Errorw("Failed to flush merge target", "handle", w.target, "error", err)
			w.failed = true
		} else {
			w.dirty = false
		}
	}

	if !w.failed {
		if err := d.layer.Remove(w.file); err != nil {
			d.log.Errorw("Failed to remove compacted file", "handle", w.file, "error", err)
		}
	}

	d.unclaim(w.file)
	w.active = false
	m.HandleFileDone()
}

// finishPass writes the hint sidecar for the pass's merge target and
// releases it for future passes.
func (d *Driver) finishPass(w *walk) {
	if w.target == filesys.NoHandle {
		return
	}

	if len(w.hint) > 0 {
		if err := d.layer.WriteHint(w.target, w.hint); err != nil {
			d.log.Errorw("Failed to write hint file", "handle", w.target, "error", err)
		}
	}

	d.mu.Lock()
	delete(d.targets, w.target)
	d.mu.Unlock()

	w.target = filesys.NoHandle
	w.targetOff = 0
	w.hint = nil
	w.lastOK = false
}

// abandon finalizes a pass cut short by shutdown: flush and hint whatever
// was copied, release claims. Source files not yet retired stay on disk;
// recovery resolves the duplicated records by replay order.
func (d *Driver) abandon(w *walk) {
	if w.target != filesys.NoHandle && w.dirty {
		if err := d.layer.FlushFile(w.target); err != nil {
			d.log.Errorw("Failed to flush merge target during shutdown", "handle", w.target, "error", err)
		}
		w.dirty = false
	}
	d.finishPass(w)

	if w.active {
		d.unclaim(w.file)
		w.active = false
	}
}

func (d *Driver) claim() (filesys.Handle, uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range d.layer.Immutables() {
		if d.claimed[h] || d.targets[h] {
			continue
		}

		size, err := d.layer.FileSize(h)
		if err != nil {
			continue
		}

		d.claimed[h] = true
		return h, size, true
	}
	return filesys.NoHandle, 0, false
}

func (d *Driver) unclaim(h filesys.Handle) {
	d.mu.Lock()
	delete(d.claimed, h)
	d.mu.Unlock()
}
