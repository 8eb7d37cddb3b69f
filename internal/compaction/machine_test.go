package compaction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/cask/internal/record"
	"github.com/iamNilotpal/cask/pkg/filesys"
)

const dormancy = 3600

func drain(m *Machine) []Operation {
	var ops []Operation
	for {
		op, ok := m.PollOperation()
		if !ok {
			return ops
		}
		ops = append(ops, op)
	}
}

func liveEntry(key string, file filesys.Handle, offset, ts uint64) Entry {
	header := record.Header{
		Tombstone: record.NotDeleted,
		Timestamp: ts,
		KeySize:   uint16(len(key)),
		ValueSize: 1,
	}
	rec, _ := record.Encode([]byte(key), []byte("v"), ts)
	return Entry{Header: header, Key: []byte(key), Record: rec, File: file, Offset: offset}
}

func TestStartsCompactingWithOpenNext(t *testing.T) {
	m := NewMachine(dormancy)

	ops := drain(m)
	require.Len(t, ops, 1)
	require.Equal(t, KindOpenNext, ops[0].Kind)

	// No deadline while actively compacting.
	_, waiting := m.PollDeadline()
	require.False(t, waiting)
}

func TestTombstoneEntryIsDropped(t *testing.T) {
	m := NewMachine(dormancy)
	drain(m)

	header := record.Header{Tombstone: record.Deleted, KeySize: 1}
	m.HandleEntry(Entry{Header: header, Key: []byte("k"), File: 1, Offset: 0})

	ops := drain(m)
	require.Len(t, ops, 1)
	require.Equal(t, KindDrop, ops[0].Kind)
}

func TestLiveEntryAsksCheckKey(t *testing.T) {
	m := NewMachine(dormancy)
	drain(m)

	m.HandleEntry(liveEntry("k", 3, 120, 55))

	ops := drain(m)
	require.Len(t, ops, 1)
	require.Equal(t, KindCheckKey, ops[0].Kind)
	require.Equal(t, []byte("k"), ops[0].Key)
	require.Equal(t, filesys.Handle(3), ops[0].File)
	require.Equal(t, uint64(120), ops[0].Offset)
	require.Equal(t, uint64(55), ops[0].Timestamp)
}

func TestMatchEmitsCopyThenHint(t *testing.T) {
	m := NewMachine(dormancy)
	drain(m)

	e := liveEntry("k", 3, 120, 55)
	m.HandleEntry(e)
	drain(m)
	m.HandleMatch()

	ops := drain(m)
	require.Len(t, ops, 2)
	require.Equal(t, KindCopyLive, ops[0].Kind)
	require.Equal(t, e.Record, ops[0].Record)
	require.Equal(t, e.File, ops[0].File)
	require.Equal(t, e.Offset, ops[0].Offset)
	require.Equal(t, KindEmitHint, ops[1].Kind)
	require.Equal(t, e.Header, ops[1].Header)
	require.Equal(t, []byte("k"), ops[1].Key)
}

func TestNoMatchDrops(t *testing.T) {
	m := NewMachine(dormancy)
	drain(m)

	m.HandleEntry(liveEntry("k", 3, 120, 55))
	drain(m)
	m.HandleNoMatch()

	ops := drain(m)
	require.Len(t, ops, 1)
	require.Equal(t, KindDrop, ops[0].Kind)
}

func TestVerdictWithoutQuestionIsIgnored(t *testing.T) {
	m := NewMachine(dormancy)
	drain(m)

	m.HandleMatch()
	m.HandleNoMatch()
	require.Empty(t, drain(m))
}

func TestFileDoneAsksForNextFile(t *testing.T) {
	m := NewMachine(dormancy)
	drain(m)

	m.HandleFileDone()
	ops := drain(m)
	require.Len(t, ops, 1)
	require.Equal(t, KindOpenNext, ops[0].Kind)
}

func TestEndEntersDormancy(t *testing.T) {
	m := NewMachine(dormancy)
	drain(m)

	m.HandleEnd(1000)

	deadline, waiting := m.PollDeadline()
	require.True(t, waiting)
	require.Equal(t, uint64(1000+dormancy), deadline)

	// Inputs while dormant are ignored.
	m.HandleEntry(liveEntry("k", 1, 0, 1))
	m.HandleFileDone()
	require.Empty(t, drain(m))
}

func TestDeadlineElapsesForward(t *testing.T) {
	m := NewMachine(dormancy)
	drain(m)
	m.HandleEnd(1000)

	// Too early: still dormant.
	m.OnDeadline(1000 + dormancy - 1)
	require.Empty(t, drain(m))
	_, waiting := m.PollDeadline()
	require.True(t, waiting)

	// Exactly at the deadline: wake up and ask for work.
	m.OnDeadline(1000 + dormancy)
	ops := drain(m)
	require.Len(t, ops, 1)
	require.Equal(t, KindOpenNext, ops[0].Kind)

	_, waiting = m.PollDeadline()
	require.False(t, waiting)
}

func TestFullCycle(t *testing.T) {
	m := NewMachine(dormancy)

	op, ok := m.PollOperation()
	require.True(t, ok)
	require.Equal(t, KindOpenNext, op.Kind)

	// One file with one superseded and one live record.
	m.HandleEntry(liveEntry("stale", 1, 0, 10))
	op, _ = m.PollOperation()
	require.Equal(t, KindCheckKey, op.Kind)
	m.HandleNoMatch()
	op, _ = m.PollOperation()
	require.Equal(t, KindDrop, op.Kind)

	m.HandleEntry(liveEntry("live", 1, 17, 11))
	op, _ = m.PollOperation()
	require.Equal(t, KindCheckKey, op.Kind)
	m.HandleMatch()
	op, _ = m.PollOperation()
	require.Equal(t, KindCopyLive, op.Kind)
	op, _ = m.PollOperation()
	require.Equal(t, KindEmitHint, op.Kind)

	m.HandleFileDone()
	op, _ = m.PollOperation()
	require.Equal(t, KindOpenNext, op.Kind)

	m.HandleEnd(5000)
	deadline, waiting := m.PollDeadline()
	require.True(t, waiting)
	require.Equal(t, uint64(5000+dormancy), deadline)

	m.OnDeadline(deadline + 1)
	op, ok = m.PollOperation()
	require.True(t, ok)
	require.Equal(t, KindOpenNext, op.Kind)
}
