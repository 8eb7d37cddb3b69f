package compaction

import (
	"github.com/iamNilotpal/cask/internal/record"
	"github.com/iamNilotpal/cask/pkg/filesys"
)

// Kind discriminates the operations the state machine asks its driver to
// perform.
type Kind int

const (
	// KindOpenNext asks the driver to find the next immutable file to
	// process.
	KindOpenNext Kind = iota + 1

	// KindCheckKey asks the driver whether the index's current locator for
	// Key equals the one the candidate record would have: same file, same
	// offset, same timestamp.
	KindCheckKey

	// KindCopyLive asks the driver to append the candidate record to the
	// compaction output.
	KindCopyLive

	// KindEmitHint asks the driver to append a hint record for the copy it
	// just made; the driver also relinks the index entry to the copy here.
	KindEmitHint

	// KindDrop tells the driver the candidate record is superseded, deleted
	// or a tombstone, and is to be ignored.
	KindDrop
)

// Operation is one unit of work emitted by the state machine. Fields beyond
// Kind are populated as the kind requires: CheckKey carries the key and the
// candidate's location, CopyLive additionally carries the encoded record,
// EmitHint carries the header and key of the record just copied.
type Operation struct {
	Kind      Kind
	Header    record.Header
	Key       []byte
	Record    []byte
	File      filesys.Handle
	Offset    uint64
	Timestamp uint64
}

// Entry is a decoded record fed into the state machine by the driver: the
// header, the key, the full encoded record bytes, and where the record was
// found.
type Entry struct {
	Header record.Header
	Key    []byte
	Record []byte
	File   filesys.Handle
	Offset uint64
}

type state int

const (
	// stateCompact means the machine is actively walking an immutable file.
	stateCompact state = iota

	// stateWait means the machine is dormant between compaction cycles.
	stateWait
)

// Machine is the sans-I/O state machine controlling the compaction loop. It
// accepts inputs (file entries, index lookup answers, end-of-files, elapsed
// deadlines) and emits operations; all file and clock access stays with the
// driver, which makes the machine unit-testable with synthetic inputs.
//
// The classification it implements for a record at offset O in file F:
// tombstones are dropped; a record whose key's current index locator is not
// exactly {F, O, timestamp} is superseded and dropped; everything else is
// copied to the compaction output followed by a hint record.
type Machine struct {
	ops      []Operation
	state    state
	since    uint64 // when the machine last finished a pass, seconds
	dormancy uint64 // seconds between passes
	pending  *Entry // candidate awaiting the CheckKey verdict
}
