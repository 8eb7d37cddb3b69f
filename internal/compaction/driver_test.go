package compaction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/cask/internal/index"
	"github.com/iamNilotpal/cask/internal/record"
	"github.com/iamNilotpal/cask/internal/storage"
	"github.com/iamNilotpal/cask/pkg/clock"
	"github.com/iamNilotpal/cask/pkg/filesys"
	"github.com/iamNilotpal/cask/pkg/logger"
)

type fixture struct {
	fs     *filesys.Mem
	layer  *storage.Layer
	idx    *index.Index
	driver *Driver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fs := filesys.NewMem()
	layer, err := storage.New(&storage.Config{FS: fs, Logger: logger.NewNop()})
	require.NoError(t, err)

	idx := index.New()
	driver := NewDriver(&DriverConfig{
		Layer:    layer,
		Index:    idx,
		Clock:    clock.NewFixed(1_000_000),
		Logger:   logger.NewNop(),
		Dormancy: time.Hour,
		Quit:     make(chan struct{}),
	})

	return &fixture{fs: fs, layer: layer, idx: idx, driver: driver}
}

// put appends a live record and registers it in the index, mirroring the
// write path.
func (f *fixture) put(t *testing.T, key, value string, ts uint64) index.Locator {
	t.Helper()

	rec, err := record.Encode([]byte(key), []byte(value), ts)
	require.NoError(t, err)
	loc, err := f.layer.Append(rec, uint32(len(value)), ts)
	require.NoError(t, err)
	f.idx.Put([]byte(key), loc)
	return loc
}

func (f *fixture) del(t *testing.T, key string) {
	t.Helper()

	f.idx.Remove([]byte(key))
	rec, err := record.EncodeTombstone([]byte(key))
	require.NoError(t, err)
	_, err = f.layer.Append(rec, 0, 0)
	require.NoError(t, err)
}

func (f *fixture) rotate(t *testing.T) {
	t.Helper()
	_, err := f.layer.RotateActive()
	require.NoError(t, err)
}

// readValue resolves a locator through the layer the way the read path does.
func (f *fixture) readValue(t *testing.T, key string) string {
	t.Helper()

	loc, ok := f.idx.Get([]byte(key))
	require.True(t, ok)

	headerBytes, err := f.layer.ReadExact(loc.Handle, loc.Offset, record.HeaderLen)
	require.NoError(t, err)
	header, err := record.DecodeHeader(headerBytes)
	require.NoError(t, err)

	data, err := f.layer.ReadExact(loc.Handle, loc.Offset+record.HeaderLen, header.DataLen())
	require.NoError(t, err)
	return string(data[header.KeySize:])
}

func TestPassCopiesLiveAndDropsSuperseded(t *testing.T) {
	f := newFixture(t)

	f.put(t, "k", "old", 1)
	f.put(t, "stale", "x", 2)
	f.rotate(t)
	sourceHandles := f.layer.Immutables()
	require.Len(t, sourceHandles, 1)

	// A newer write supersedes the "stale" record in the immutable file,
	// leaving "k" as its only live record.
	f.put(t, "stale", "y", 3)

	f.driver.RunOnce()

	// The source file is gone; "k" survived the move, "stale" resolved to
	// the newer record in the active file.
	require.NotContains(t, f.layer.Immutables(), sourceHandles[0])
	require.Equal(t, "old", f.readValue(t, "k"))
	require.Equal(t, "y", f.readValue(t, "stale"))

	// "k" now lives in the merge target, not the removed source.
	loc, ok := f.idx.Get([]byte("k"))
	require.True(t, ok)
	require.NotEqual(t, sourceHandles[0], loc.Handle)
}

func TestPassDropsTombstonesAndDeletedKeys(t *testing.T) {
	f := newFixture(t)

	f.put(t, "doomed", "v", 1)
	f.del(t, "doomed")
	f.put(t, "kept", "w", 2)
	f.rotate(t)

	f.driver.RunOnce()

	_, ok := f.idx.Get([]byte("doomed"))
	require.False(t, ok)
	require.Equal(t, "w", f.readValue(t, "kept"))

	// Exactly one merge target remains besides the active file, holding
	// only the surviving record.
	immutables := f.layer.Immutables()
	require.Len(t, immutables, 1)

	size, err := f.layer.FileSize(immutables[0])
	require.NoError(t, err)
	require.Equal(t, uint64(record.HeaderLen+len("kept")+len("w")), size)
}

func TestPassWritesHintForMergeTarget(t *testing.T) {
	f := newFixture(t)

	f.put(t, "hinted", "value", 9)
	f.rotate(t)

	f.driver.RunOnce()

	immutables := f.layer.Immutables()
	require.Len(t, immutables, 1)
	target := immutables[0]

	hint, ok, err := f.layer.ReadHint(target)
	require.NoError(t, err)
	require.True(t, ok)

	header, err := record.DecodeHeader(hint)
	require.NoError(t, err)
	require.Equal(t, uint16(len("hinted")), header.KeySize)
	require.Equal(t, uint64(9), header.Timestamp)
	require.Equal(t, []byte("hinted"), hint[record.HeaderLen:record.HeaderLen+6])

	valueOffset := record.DecodeHintTrailer(hint[record.HeaderLen+6:])
	recordOffset := record.RecordOffsetFromValueOffset(header, valueOffset)

	got, ok := f.idx.Get([]byte("hinted"))
	require.True(t, ok)
	require.Equal(t, target, got.Handle)
	require.Equal(t, recordOffset, got.Offset)
}

func TestPassWithNoImmutablesIsQuiet(t *testing.T) {
	f := newFixture(t)

	f.put(t, "active-only", "v", 1)
	before := f.fs.NumFiles()

	f.driver.RunOnce()

	require.Equal(t, before, f.fs.NumFiles())
	require.Equal(t, "v", f.readValue(t, "active-only"))
}

func TestMultiplePassesConverge(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		f.put(t, "a", "va", uint64(10+i))
		f.put(t, "b", "vb", uint64(20+i))
		f.rotate(t)
	}

	f.driver.RunOnce()
	// A second pass over the merged output: everything in it is current,
	// so it is copied forward again and the old target retired.
	f.driver.RunOnce()

	require.Equal(t, "va", f.readValue(t, "a"))
	require.Equal(t, "vb", f.readValue(t, "b"))

	// One merge target plus the empty active file.
	require.Len(t, f.layer.Immutables(), 1)
}

func TestCompactionPreservesContent(t *testing.T) {
	f := newFixture(t)

	keys := []string{"alpha", "beta", "gamma", "delta"}
	for round := 0; round < 4; round++ {
		for i, k := range keys {
			f.put(t, k, k+"-v"+string(rune('0'+round)), uint64(round*10+i))
		}
		f.rotate(t)
	}
	f.del(t, "delta")

	want := map[string]string{}
	for _, k := range keys[:3] {
		want[k] = f.readValue(t, k)
	}

	f.driver.RunOnce()

	for k, v := range want {
		require.Equal(t, v, f.readValue(t, k))
	}
	_, ok := f.idx.Get([]byte("delta"))
	require.False(t, ok)
}
