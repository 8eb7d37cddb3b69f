// Package compaction reclaims the space held by superseded and deleted
// records. A sans-I/O state machine decides what happens to each record; a
// driver, run on the worker pool, performs the file walks, index lookups,
// copies and deletions the machine asks for.
package compaction

// NewMachine returns a machine ready to compact: the first poll yields
// OpenNext. Dormancy is the number of seconds the machine sleeps between
// passes once the immutable files are exhausted.
func NewMachine(dormancy uint64) *Machine {
	m := &Machine{state: stateCompact, dormancy: dormancy}
	m.push(Operation{Kind: KindOpenNext})
	return m
}

func (m *Machine) push(op Operation) {
	m.ops = append(m.ops, op)
}

// PollOperation returns the next operation for the driver to perform,
// reporting false when the machine has nothing queued and is waiting for
// input or for its deadline.
func (m *Machine) PollOperation() (Operation, bool) {
	if len(m.ops) == 0 {
		return Operation{}, false
	}
	op := m.ops[0]
	m.ops = m.ops[1:]
	return op, true
}

// HandleEntry feeds the machine the next decoded record of the file being
// walked. Tombstones are dropped immediately; live records become the
// pending candidate and emit a CheckKey question.
func (m *Machine) HandleEntry(e Entry) {
	if m.state != stateCompact {
		return
	}

	if e.Header.IsTombstone() {
		m.push(Operation{Kind: KindDrop, Header: e.Header, Key: e.Key, File: e.File, Offset: e.Offset})
		return
	}

	m.pending = &e
	m.push(Operation{
		Kind:      KindCheckKey,
		Key:       e.Key,
		File:      e.File,
		Offset:    e.Offset,
		Timestamp: e.Header.Timestamp,
	})
}

// HandleMatch answers the outstanding CheckKey positively: the candidate is
// the authoritative record for its key, so it is copied and a hint is
// emitted for it.
func (m *Machine) HandleMatch() {
	if m.state != stateCompact || m.pending == nil {
		return
	}

	e := m.pending
	m.pending = nil

	m.push(Operation{
		Kind:      KindCopyLive,
		Header:    e.Header,
		Key:       e.Key,
		Record:    e.Record,
		File:      e.File,
		Offset:    e.Offset,
		Timestamp: e.Header.Timestamp,
	})
	m.push(Operation{
		Kind:   KindEmitHint,
		Header: e.Header,
		Key:    e.Key,
	})
}

// HandleNoMatch answers the outstanding CheckKey negatively: some newer
// record or a tombstone superseded the candidate.
func (m *Machine) HandleNoMatch() {
	if m.state != stateCompact || m.pending == nil {
		return
	}

	e := m.pending
	m.pending = nil
	m.push(Operation{Kind: KindDrop, Header: e.Header, Key: e.Key, File: e.File, Offset: e.Offset})
}

// HandleFileDone tells the machine the current file is exhausted; it moves
// on to the next one.
func (m *Machine) HandleFileDone() {
	if m.state != stateCompact {
		return
	}
	m.push(Operation{Kind: KindOpenNext})
}

// HandleEnd tells the machine every immutable file has been processed. The
// machine goes dormant at the given instant.
func (m *Machine) HandleEnd(now uint64) {
	if m.state != stateCompact {
		return
	}
	m.state = stateWait
	m.since = now
	m.pending = nil
}

// PollDeadline returns the earliest instant at which the machine wants to be
// driven again. While compacting there is no deadline and the second return
// is false; while dormant the deadline is the end of the dormancy interval.
func (m *Machine) PollDeadline() (uint64, bool) {
	if m.state != stateWait {
		return 0, false
	}
	return m.since + m.dormancy, true
}

// OnDeadline wakes the machine if the dormancy interval has elapsed: the
// machine re-enters compaction and asks for the next file. Calls before the
// deadline are ignored.
func (m *Machine) OnDeadline(now uint64) {
	if m.state != stateWait {
		return
	}
	if now < m.since+m.dormancy {
		return
	}
	m.state = stateCompact
	m.push(Operation{Kind: KindOpenNext})
}
