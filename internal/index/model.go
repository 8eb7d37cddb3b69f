package index

import (
	"sync"

	"github.com/iamNilotpal/cask/pkg/filesys"
)

// Locator contains the minimum metadata required to retrieve a record from
// disk. It is the primary memory consumer in the entire system: one Locator
// per live key, so every field choice here compounds across millions of
// entries. Larger fields come first to minimize the padding the compiler
// inserts between them.
//
// Each Locator is a precise address: which file, which byte the record
// header starts at, how large the value is, and the timestamp the record was
// written with. A read jumps straight to the right location with no scanning
// and no additional lookups. The value's own position follows from the
// record layout: Offset plus the header length plus the key length.
type Locator struct {
	// Offset is the byte position of the record header within the file.
	Offset uint64

	// Timestamp is the record's write time in seconds since the Unix epoch.
	// Together with Handle and Offset it lets compaction verify that a record
	// it is looking at is still the authoritative one for its key.
	Timestamp uint64

	// Handle names the file containing the record.
	Handle filesys.Handle

	// ValueSize is the byte length of just the value portion. It allows
	// pre-allocating an exactly sized buffer before the read.
	ValueSize uint32
}

// Index is the in-memory hash table mapping each live key to the location of
// its most recent record. It is the single oracle for liveness: a key present
// in some file but absent here is superseded or deleted, and a key mapped
// here always refers to the currently authoritative record.
//
// A single reader-writer lock protects the map. Readers proceed
// concurrently; a writer has exclusive access.
type Index struct {
	mu      sync.RWMutex
	entries map[string]Locator
}
