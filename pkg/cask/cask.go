// Package cask provides an embedded, log-structured, hash-indexed key/value
// store following the Bitcask design. It combines an in-memory hash table
// mapping each live key to the location of its most recent record with an
// append-only log structure on disk, giving durable writes and single-seek
// reads. A store is linked into the host process as a library and may be
// used concurrently from multiple goroutines.
//
// Keys and values are opaque byte slices. Every put and delete is flushed to
// stable storage before it returns; a background worker pool periodically
// compacts rotated files, reclaiming the space held by superseded and
// deleted records.
package cask

import (
	"context"

	"github.com/iamNilotpal/cask/internal/engine"
	"github.com/iamNilotpal/cask/pkg/clock"
	"github.com/iamNilotpal/cask/pkg/filesys"
	"github.com/iamNilotpal/cask/pkg/logger"
	"github.com/iamNilotpal/cask/pkg/options"
)

// Store is an open cask instance. It encapsulates the engine handling reads
// and writes and the configuration applied to this instance, and is the
// primary entry point for interacting with the data.
type Store struct {
	engine  *engine.Engine
	options *options.Options
}

// Open opens the store rooted at path with default configuration, creating
// the directory if needed.
func Open(path string) (*Store, error) {
	return OpenWithConfig(path)
}

// OpenWithConfig opens the store rooted at path, applying any provided
// functional options over the defaults.
func OpenWithConfig(path string, opts ...options.OptionFunc) (*Store, error) {
	fs, err := filesys.NewDisk(path)
	if err != nil {
		return nil, err
	}
	return OpenWithFS(path, fs, opts...)
}

// OpenWithFS opens a store over a caller-supplied host file system. Tests
// use it with the deterministic in-memory implementation; path is retained
// only for logging.
func OpenWithFS(path string, fs filesys.FileSystem, opts ...options.OptionFunc) (*Store, error) {
	defaultOpts := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	log := defaultOpts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("path", path)

	eng, err := engine.New(context.Background(), &engine.Config{
		Options: &defaultOpts,
		Logger:  log,
		FS:      fs,
		Clock:   clock.NewSystem(),
	})
	if err != nil {
		return nil, err
	}

	return &Store{engine: eng, options: &defaultOpts}, nil
}

// Put stores a key-value pair. If the key already exists its value is
// replaced. The record is on stable storage when Put returns.
func (s *Store) Put(key, value []byte) error {
	return s.engine.Put(key, value)
}

// Get retrieves the value most recently stored for key. Absent keys fail
// with a not-found error; see errors.IsNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	return s.engine.Get(key)
}

// Delete removes a key. Deleting a key that does not exist succeeds without
// touching the log.
func (s *Store) Delete(key []byte) error {
	return s.engine.Delete(key)
}

// Compact runs one compaction pass synchronously, independent of the
// background workers' schedule.
func (s *Store) Compact() error {
	return s.engine.Compact()
}

// Close shuts the store down gracefully: compaction workers are joined and
// file handles released. The Store is unusable afterwards.
func (s *Store) Close() error {
	return s.engine.Close()
}
