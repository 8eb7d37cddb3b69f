// Package engine provides the core coordinator binding the record codec, the
// file layer, the key directory and the compaction workers into the store's
// put/get/delete operations.
//
// The engine owns the concurrency discipline that makes the store safe under
// parallel callers: appends are totally ordered by the file layer's write
// lock, index updates are linearizable under the index's reader-writer lock,
// and the two locks are only ever taken in that order. It also enforces the
// active file size threshold that triggers rotation, and the write-then-index
// ordering that keeps the index from referencing records that never reached
// the log.
package engine

import (
	"context"
	stdErrors "errors"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/iamNilotpal/cask/internal/compaction"
	"github.com/iamNilotpal/cask/internal/index"
	"github.com/iamNilotpal/cask/internal/pool"
	"github.com/iamNilotpal/cask/internal/record"
	"github.com/iamNilotpal/cask/internal/recovery"
	"github.com/iamNilotpal/cask/internal/storage"
	"github.com/iamNilotpal/cask/pkg/clock"
	"github.com/iamNilotpal/cask/pkg/errors"
	"github.com/iamNilotpal/cask/pkg/filesys"
	"github.com/iamNilotpal/cask/pkg/options"
)

var (
	// ErrEngineClosed is returned when attempting to perform operations on a
	// closed engine.
	ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")
)

// Engine coordinates all subsystems and is the primary interface for store
// operations. It is safe for use by multiple goroutines.
type Engine struct {
	options *options.Options
	log     *zap.SugaredLogger
	closed  atomic.Bool
	clk     clock.Clock
	layer   *storage.Layer
	index   *index.Index
	pool    *pool.Pool
	merger  *compaction.Driver
}

// Config holds all the parameters needed to initialize a new Engine.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
	FS      filesys.FileSystem
	Clock   clock.Clock
}

// New constructs an engine over the given host file system: builds the file
// layer, rebuilds the index from whatever the directory already holds, and
// starts the compaction workers.
func New(ctx context.Context, config *Config) (*Engine, error) {
	if config == nil || config.Options == nil || config.Logger == nil || config.FS == nil || config.Clock == nil {
		return nil, stdErrors.New("invalid configuration")
	}

	idx := index.New()

	layer, err := storage.New(&storage.Config{FS: config.FS, Logger: config.Logger})
	if err != nil {
		return nil, err
	}

	if layer.ActiveSize() > 0 || len(layer.Immutables()) > 0 {
		if err := recovery.Rebuild(&recovery.Config{
			Layer:  layer,
			Index:  idx,
			Logger: config.Logger,
		}); err != nil {
			return nil, err
		}
	}

	workers := pool.New(config.Options.Workers)
	merger := compaction.NewDriver(&compaction.DriverConfig{
		Layer:    layer,
		Index:    idx,
		Clock:    config.Clock,
		Logger:   config.Logger,
		Dormancy: config.Options.CompactInterval,
		Quit:     workers.Quit(),
	})

	for i := 0; i < config.Options.Workers; i++ {
		workers.Submit(merger.Loop)
	}

	config.Logger.Infow(
		"Engine initialized",
		"activeThreshold", config.Options.ActiveThreshold,
		"compactInterval", config.Options.CompactInterval,
		"workers", config.Options.Workers,
		"recoveredKeys", idx.Len(),
	)

	return &Engine{
		options: config.Options,
		log:     config.Logger,
		clk:     config.Clock,
		layer:   layer,
		index:   idx,
		pool:    workers,
		merger:  merger,
	}, nil
}

// Put stores a key-value pair: encode, append to the active file, upsert the
// index, then rotate if the active file crossed the size threshold. The
// append happens strictly before the index update; on append failure the
// index is untouched.
func (e *Engine) Put(key, value []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	timestamp, err := e.clk.Now()
	if err != nil {
		return errors.NewStorageError(
			err, errors.ErrorCodeTimeSource, "Clock failed to produce a record timestamp",
		)
	}

	rec, err := record.Encode(key, value, timestamp)
	if err != nil {
		return err
	}

	loc, err := e.layer.Append(rec, uint32(len(value)), timestamp)
	if err != nil {
		return err
	}

	e.index.Put(key, loc)

	if e.layer.ActiveSize() >= e.options.ActiveThreshold {
		if _, err := e.layer.RotateActive(); err != nil {
			return err
		}
	}

	return nil
}

// Get retrieves the value most recently stored for key. Looks up the index,
// reads the record header at the locator, validates the two against each
// other, then reads and returns the value bytes.
//
// A compaction worker may retire the file a locator points into between the
// lookup and the read; the index already holds the copied record's location
// by then, so an unknown-handle read is resolved by looking up again.
func (e *Engine) Get(key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	value, err := e.get(key)
	for attempts := 0; attempts < 2 && isUnknownHandle(err); attempts++ {
		value, err = e.get(key)
	}
	return value, err
}

func (e *Engine) get(key []byte) ([]byte, error) {
	loc, ok := e.index.Get(key)
	if !ok {
		return nil, errors.NewIndexError(
			nil, errors.ErrorCodeKeyNotFound, "Key not found",
		).WithKey(key).WithOperation("get")
	}

	headerBytes, err := e.layer.ReadExact(loc.Handle, loc.Offset, record.HeaderLen)
	if err != nil {
		return nil, e.classifyReadError(err, key, loc)
	}

	header, err := record.DecodeHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	if !header.Valid() || header.IsTombstone() ||
		header.ValueSize != loc.ValueSize ||
		header.Timestamp != loc.Timestamp ||
		int(header.KeySize) != len(key) {
		return nil, errors.NewStorageError(
			nil, errors.ErrorCodeCorruption, "Record header inconsistent with index entry",
		).WithHandle(uint64(loc.Handle)).WithOffset(loc.Offset)
	}

	data, err := e.layer.ReadExact(loc.Handle, loc.Offset+record.HeaderLen, header.DataLen())
	if err != nil {
		return nil, e.classifyReadError(err, key, loc)
	}

	value := make([]byte, header.ValueSize)
	copy(value, data[header.KeySize:])
	return value, nil
}

// Delete removes a key: the index entry goes first so no concurrent reader
// can observe a key whose tombstone is still pending, then the tombstone is
// appended and its failure, if any, surfaced. Deleting an absent key
// succeeds with no I/O.
func (e *Engine) Delete(key []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	if !e.index.Remove(key) {
		return nil
	}

	tombstone, err := record.EncodeTombstone(key)
	if err != nil {
		return err
	}

	_, err = e.layer.Append(tombstone, 0, 0)
	return err
}

// Compact drives a single compaction pass to quiescence on the calling
// goroutine, independent of the background workers' dormancy cycle.
func (e *Engine) Compact() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	e.merger.RunOnce()
	return nil
}

// Keys reports the number of live keys in the index.
func (e *Engine) Keys() int {
	return e.index.Len()
}

// Close shuts the engine down: exactly one caller wins the transition, the
// compaction workers are signalled and joined, then the file layer is
// released.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	e.pool.Shutdown()
	return e.layer.Close()
}

func isUnknownHandle(err error) bool {
	if se, ok := errors.AsStorageError(err); ok {
		return se.Code() == errors.ErrorCodeUnknownHandle
	}
	return false
}

// classifyReadError distinguishes a read that ran past end-of-file, which a
// valid locator should never cause, from an ordinary I/O failure.
func (e *Engine) classifyReadError(err error, key []byte, loc index.Locator) error {
	if stdErrors.Is(err, io.ErrUnexpectedEOF) || stdErrors.Is(err, io.EOF) {
		return errors.NewStorageError(
			err, errors.ErrorCodeCorruption, "Index entry points past end of file",
		).WithHandle(uint64(loc.Handle)).WithOffset(loc.Offset).WithDetail("keySize", len(key))
	}
	return err
}
