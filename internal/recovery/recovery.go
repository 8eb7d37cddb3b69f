// Package recovery rebuilds the in-memory index from the files on disk when
// a store opens over a non-empty directory.
//
// Immutable files are replayed first, in ascending handle order, the active
// file last. Handles are allocated monotonically and files only ever receive
// appends while active, so handle order is write order: a later record for
// the same key naturally overwrites the earlier index entry, and a tombstone
// removes it.
//
// A file with a hint sidecar is rebuilt from the hint records alone, which
// skips reading the values entirely. Files without hints get a full scan.
package recovery

import (
	"go.uber.org/zap"

	"github.com/iamNilotpal/cask/internal/index"
	"github.com/iamNilotpal/cask/internal/record"
	"github.com/iamNilotpal/cask/internal/storage"
	"github.com/iamNilotpal/cask/pkg/errors"
	"github.com/iamNilotpal/cask/pkg/filesys"
)

// Config holds the collaborators recovery works against.
type Config struct {
	Layer  *storage.Layer
	Index  *index.Index
	Logger *zap.SugaredLogger
}

// Rebuild replays every file on disk into the index and positions the file
// layer's write cursor at the end of the last complete record in the active
// file.
func Rebuild(config *Config) error {
	for _, h := range config.Layer.Immutables() {
		if err := rebuildImmutable(config, h); err != nil {
			return errors.NewStorageError(
				err, errors.ErrorCodeRecoveryFailed, "Failed to rebuild index from immutable file",
			).WithHandle(uint64(h))
		}
	}

	active := config.Layer.ActiveHandle()
	size, err := config.Layer.FileSize(active)
	if err != nil {
		return errors.NewStorageError(
			err, errors.ErrorCodeRecoveryFailed, "Failed to size the active file",
		).WithHandle(uint64(active))
	}

	end, err := scanFile(config, active, size)
	if err != nil {
		return errors.NewStorageError(
			err, errors.ErrorCodeRecoveryFailed, "Failed to rebuild index from the active file",
		).WithHandle(uint64(active))
	}

	config.Layer.UpdateCursor(end)

	config.Logger.Infow(
		"Index rebuilt",
		"keys", config.Index.Len(),
		"activeHandle", active,
		"cursor", end,
	)
	return nil
}

func rebuildImmutable(config *Config, h filesys.Handle) error {
	hint, ok, err := config.Layer.ReadHint(h)
	if err != nil {
		return err
	}
	if ok {
		return replayHint(config, h, hint)
	}

	size, err := config.Layer.FileSize(h)
	if err != nil {
		return err
	}
	_, err = scanFile(config, h, size)
	return err
}

// scanFile walks one file from offset zero as a stream of records, applying
// each to the index. It returns the offset just past the last complete
// record. A trailing partial record, the residue of a crashed append, ends
// the walk silently: the index skips it and the file stays unchanged on
// disk.
func scanFile(config *Config, h filesys.Handle, size uint64) (uint64, error) {
	var offset uint64

	for offset+record.HeaderLen <= size {
		headerBytes, err := config.Layer.ReadExact(h, offset, record.HeaderLen)
		if err != nil {
			return 0, err
		}

		header, err := record.DecodeHeader(headerBytes)
		if err != nil {
			return 0, err
		}
		if !header.Valid() {
			// A malformed header gives no record length to skip by. Treat
			// everything from here on as unusable tail.
			config.Logger.Warnw(
				"Malformed record header during recovery, truncating scan",
				"handle", h, "offset", offset,
			)
			return offset, nil
		}

		recordLen := uint64(header.RecordLen())
		if offset+recordLen > size {
			break
		}

		key, err := config.Layer.ReadExact(h, offset+record.HeaderLen, int(header.KeySize))
		if err != nil {
			return 0, err
		}

		if header.IsTombstone() {
			config.Index.Remove(key)
		} else {
			config.Index.Put(key, index.Locator{
				Handle:    h,
				Offset:    offset,
				ValueSize: header.ValueSize,
				Timestamp: header.Timestamp,
			})
		}

		offset += recordLen
	}

	return offset, nil
}

// replayHint rebuilds one file's index contribution from its hint records.
// Compaction never writes tombstones into a hint, so every entry is an
// upsert.
func replayHint(config *Config, h filesys.Handle, hint []byte) error {
	var offset int

	for offset+record.HeaderLen <= len(hint) {
		header, err := record.DecodeHeader(hint[offset:])
		if err != nil {
			return err
		}

		need := record.HintLen(header)
		if offset+need > len(hint) {
			config.Logger.Warnw(
				"Truncated hint record, falling back to remaining entries only",
				"handle", h, "offset", offset,
			)
			break
		}

		key := hint[offset+record.HeaderLen : offset+record.HeaderLen+int(header.KeySize)]
		valueOffset := record.DecodeHintTrailer(hint[offset+record.HeaderLen+int(header.KeySize):])

		config.Index.Put(key, index.Locator{
			Handle:    h,
			Offset:    record.RecordOffsetFromValueOffset(header, valueOffset),
			ValueSize: header.ValueSize,
			Timestamp: header.Timestamp,
		})

		offset += need
	}

	return nil
}
