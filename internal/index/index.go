// Package index provides the in-memory key directory for the store. It
// embodies the core Bitcask principle: keep every key in memory with minimal
// metadata while the values live on disk, giving O(1) lookups over datasets
// far larger than RAM.
package index

import "maps"

// New returns an empty Index ready for concurrent use.
func New() *Index {
	return &Index{entries: make(map[string]Locator, 1024)}
}

// Get returns a copy of the locator for key, reporting whether one exists.
func (idx *Index) Get(key []byte) (Locator, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	loc, ok := idx.entries[string(key)]
	return loc, ok
}

// Put inserts or replaces the locator for key. The key bytes are copied; the
// caller keeps ownership of its slice.
func (idx *Index) Put(key []byte, loc Locator) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries[string(key)] = loc
}

// Remove deletes the entry for key and reports whether one existed.
func (idx *Index) Remove(key []byte) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, ok := idx.entries[string(key)]
	if ok {
		delete(idx.entries, string(key))
	}
	return ok
}

// ReplaceIfCurrent swaps the locator for key to next only if the stored
// locator still equals expect, reporting whether the swap happened. The
// compaction worker uses this to relink a key to its copied record without
// clobbering a write that landed after the copy was taken.
func (idx *Index) ReplaceIfCurrent(key []byte, expect, next Locator) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur, ok := idx.entries[string(key)]
	if !ok || cur != expect {
		return false
	}
	idx.entries[string(key)] = next
	return true
}

// Len returns the number of live keys.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Snapshot returns a copy of the whole mapping. Used by recovery tests to
// compare the index built from two opens of the same directory.
func (idx *Index) Snapshot() map[string]Locator {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return maps.Clone(idx.entries)
}
