package options

import "time"

const (
	// DefaultActiveThreshold is the active file size, in bytes, at which the
	// store rotates to a fresh active file.
	DefaultActiveThreshold uint64 = 4096

	// DefaultCompactInterval is the dormancy period between compaction passes.
	DefaultCompactInterval = time.Hour

	// DefaultWorkers is the number of compaction workers the store runs.
	DefaultWorkers = 2
)

// Holds the default configuration settings for a store instance.
var defaultOptions = Options{
	ActiveThreshold: DefaultActiveThreshold,
	CompactInterval: DefaultCompactInterval,
	Workers:         DefaultWorkers,
}

// NewDefaultOptions returns a copy of the default configuration.
func NewDefaultOptions() Options {
	return defaultOptions
}
