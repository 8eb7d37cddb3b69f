package filesys

import (
	"fmt"
	"strconv"
	"strings"
)

// File naming inside a store directory. The active file has a fixed name;
// rotated files carry the handle they held while active, which makes handle
// recovery on open a matter of parsing directory entries.
const (
	// ActiveFileName is the name of the file currently receiving appends.
	ActiveFileName = "active.db"

	// immutablePrefix and dataSuffix frame rotated file names:
	// immutable-<handle>.db.
	immutablePrefix = "immutable-"
	dataSuffix      = ".db"

	// HintSuffix is appended to a data file's name to form its hint sidecar:
	// immutable-<handle>.db.hint.
	HintSuffix = ".hint"
)

// ImmutableName returns the file name a rotated or merged file is stored
// under for the given handle.
func ImmutableName(h Handle) string {
	return fmt.Sprintf("%s%d%s", immutablePrefix, h, dataSuffix)
}

// HintName returns the hint sidecar name for the given data file name.
func HintName(dataName string) string {
	return dataName + HintSuffix
}

// ParseImmutableName extracts the handle from an immutable data file name.
// The second return is false for names that are not immutable data files,
// including the active file, hint sidecars and unrelated directory entries.
func ParseImmutableName(name string) (Handle, bool) {
	if !strings.HasPrefix(name, immutablePrefix) || !strings.HasSuffix(name, dataSuffix) {
		return NoHandle, false
	}

	digits := strings.TrimSuffix(strings.TrimPrefix(name, immutablePrefix), dataSuffix)
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || n == 0 {
		return NoHandle, false
	}

	return Handle(n), true
}
