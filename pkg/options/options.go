// Package options provides data structures and functions for configuring a
// cask store. It defines the parameters that control storage behavior and
// maintenance operations: the active file rotation threshold, the compaction
// dormancy interval, and the number of compaction workers.
package options

import (
	"time"

	"go.uber.org/zap"
)

// Options defines the configuration parameters for a store instance.
type Options struct {
	// ActiveThreshold is the size in bytes at or above which the active file
	// is rotated into an immutable file after an append. The on-disk size may
	// exceed the threshold by up to one record, since rotation is checked
	// after the append completes.
	//
	// Default: 4096
	ActiveThreshold uint64 `json:"activeThreshold"`

	// CompactInterval defines how long a compaction worker stays dormant
	// between passes over the immutable files. More frequent compaction means
	// more optimal storage but higher overhead.
	//
	// Default: 1h
	CompactInterval time.Duration `json:"compactInterval"`

	// Workers is the number of threads in the pool that drives compaction.
	//
	// Default: 2
	Workers int `json:"workers"`

	// Logger receives the store's structured log output. When nil the store
	// logs nothing.
	Logger *zap.SugaredLogger `json:"-"`
}

// OptionFunc is a function type that modifies the store's configuration.
type OptionFunc func(*Options)

// WithActiveThreshold sets the active file size at which rotation triggers.
func WithActiveThreshold(threshold uint64) OptionFunc {
	return func(o *Options) {
		if threshold > 0 {
			o.ActiveThreshold = threshold
		}
	}
}

// WithCompactInterval sets the dormancy interval between compaction passes.
func WithCompactInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.CompactInterval = interval
		}
	}
}

// WithWorkers sets the size of the compaction worker pool. Zero disables the
// background loops entirely; compaction can still be forced explicitly.
func WithWorkers(n int) OptionFunc {
	return func(o *Options) {
		if n >= 0 {
			o.Workers = n
		}
	}
}

// WithLogger supplies the logger the store writes through.
func WithLogger(log *zap.SugaredLogger) OptionFunc {
	return func(o *Options) {
		if log != nil {
			o.Logger = log
		}
	}
}
