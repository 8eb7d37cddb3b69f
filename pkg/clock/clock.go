// Package clock abstracts the host's wall clock behind a narrow interface so
// the core can be driven with deterministic timestamps in tests.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock produces record timestamps: seconds since the Unix epoch. Within a
// process the values returned are monotonically non-decreasing.
type Clock interface {
	Now() (uint64, error)
}

// System reads the operating system clock. The OS clock may step backwards
// under NTP adjustment, so System latches the highest value it has returned
// and never goes below it.
type System struct {
	last atomic.Uint64
}

// NewSystem returns a Clock backed by the operating system wall clock.
func NewSystem() *System {
	return &System{}
}

// Now returns the current time in seconds since the Unix epoch.
func (s *System) Now() (uint64, error) {
	now := uint64(time.Now().Unix())
	for {
		last := s.last.Load()
		if now <= last {
			return last, nil
		}
		if s.last.CompareAndSwap(last, now) {
			return now, nil
		}
	}
}

// Fixed is a Clock that returns a caller-controlled instant. Tests use it to
// pin record timestamps and to drive the compactor's dormancy timer.
type Fixed struct {
	now atomic.Uint64
}

// NewFixed returns a Fixed clock starting at the given instant.
func NewFixed(now uint64) *Fixed {
	f := &Fixed{}
	f.now.Store(now)
	return f
}

// Now returns the currently pinned instant.
func (f *Fixed) Now() (uint64, error) {
	return f.now.Load(), nil
}

// Set moves the clock to the given instant.
func (f *Fixed) Set(now uint64) {
	f.now.Store(now)
}

// Advance moves the clock forward by d, truncated to whole seconds.
func (f *Fixed) Advance(d time.Duration) {
	f.now.Add(uint64(d / time.Second))
}
