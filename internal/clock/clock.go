// Package clock provides the monotonic tick source the bdev core uses for
// QoS accounting, lock-poll timing, and reset/retry timeouts. Everything in
// this package reads a single CLOCK_MONOTONIC sample per call; apart from
// Now's fallback when clock_gettime fails, none of it touches wall-clock
// time, so NTP adjustments never skew a QoS window or a controller-loss
// timer.
package clock

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Now returns the current monotonic time as nanoseconds since an arbitrary
// epoch fixed at process start. Only differences between two Now() values
// are meaningful.
func Now() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// CLOCK_MONOTONIC is always available on Linux; fall back to
		// wall-clock nanoseconds rather than panic on an exotic kernel.
		return time.Now().UnixNano()
	}
	return ts.Nano()
}

// Elapsed returns the number of nanoseconds between since and Now().
func Elapsed(since int64) int64 {
	return Now() - since
}

// Clock is an injectable time source so tests can drive QoS refill and
// reset-timeout logic without sleeping.
type Clock interface {
	Now() int64
}

// Monotonic is the production Clock backed by CLOCK_MONOTONIC.
type Monotonic struct{}

// Now implements Clock.
func (Monotonic) Now() int64 { return Now() }

// Manual is a Clock a test can advance explicitly; it never reads the
// system clock.
type Manual struct {
	ns atomic.Int64
}

// NewManual returns a Manual clock starting at the given nanosecond value.
func NewManual(start int64) *Manual {
	m := &Manual{}
	m.ns.Store(start)
	return m
}

// Now implements Clock.
func (m *Manual) Now() int64 { return m.ns.Load() }

// Advance moves the clock forward by d and returns the new value.
func (m *Manual) Advance(d time.Duration) int64 {
	return m.ns.Add(int64(d))
}

// Set pins the clock to an absolute nanosecond value, useful for
// reproducing a specific QoS-window boundary in a test.
func (m *Manual) Set(ns int64) {
	m.ns.Store(ns)
}
