// Package constants holds the tunables of the bdev core: pool sizing,
// QoS timeslice parameters, and the minimums §4.2 requires.
package constants

import "time"

// Default configuration constants for the I/O descriptor pool (§4.3).
const (
	// DefaultIOPoolSize is the default size of the process-wide BdevIo pool.
	DefaultIOPoolSize = 64*1024 - 1

	// DefaultIOCacheSize is the default per-thread BdevIo cache size.
	DefaultIOCacheSize = 256

	// DefaultIOBufSmallCacheSize is the default per-thread small iobuf cache size.
	DefaultIOBufSmallCacheSize = 8

	// DefaultIOBufLargeCacheSize is the default per-thread large iobuf cache size.
	DefaultIOBufLargeCacheSize = 4
)

// Bdev geometry defaults.
const (
	// DefaultBlockLen is the default logical block size in bytes.
	DefaultBlockLen = 512

	// DefaultMaxRWSize is the default maximum blocks per read/write I/O (0 = unlimited).
	DefaultMaxRWSize = 0

	// DefaultMaxSegments is the default maximum iovec segments per I/O (0 = unlimited).
	DefaultMaxSegments = 0
)

// QoS constants (§4.2).
const (
	// QosTimesliceNs is the QoS accounting window, 1ms expressed in nanoseconds.
	QosTimesliceNs = int64(time.Millisecond)

	// MinIOPSLimit is the minimum nonzero IOPS limit a caller may request; smaller
	// nonzero values are rounded up to this.
	MinIOPSLimit = 1000

	// MinBPSLimitMiB is the minimum nonzero bandwidth limit in MiB/s.
	MinBPSLimitMiB = 1
	// BytesPerMiB converts the MiB/s limits accepted from callers into bytes/s.
	BytesPerMiB = 1024 * 1024
)

// Splitting constants (§4.4.3).
const (
	// MaxUnmapWriteZeroesCopyChildrenPerSplit bounds how many children a single
	// split pass emits for UNMAP/WRITE_ZEROES/COPY before yielding back to the
	// submit loop.
	MaxUnmapWriteZeroesCopyChildrenPerSplit = 8
)

// Timing constants for polling loops, in the spirit of the teacher's
// device-lifecycle timing constants.
const (
	// LockPollInterval is how often lock() polls channels for outstanding I/O
	// that overlaps a newly acquired LbaRange (§4.4.4: "polls (100us)").
	LockPollInterval = 100 * time.Microsecond

	// NomemRetryPollInterval is the fallback poller period used when the
	// NOMEM queue must be retried without a natural completion to trigger it
	// (§4.4.2 step 3: "10-ms poller").
	NomemRetryPollInterval = 10 * time.Millisecond

	// TimeoutPollInterval is how often set_timeout scans the submitted list.
	TimeoutPollInterval = 1 * time.Second

	// ResetDrainPollInterval is how often reset polls a channel's submitted
	// list while waiting for in-flight I/O to complete naturally (§4.4.6).
	ResetDrainPollInterval = 100 * time.Microsecond
)

// NVMe multipath/controller defaults (§4.5).
const (
	// DefaultRRMinIO is the default number of I/Os issued to a cached path
	// under the active_active + round_robin selector before reselecting.
	DefaultRRMinIO = 1

	// DefaultBdevRetryCount is the default number of NVMe retries before an
	// error is surfaced to the user (-1 = infinite, 0 = never retry).
	DefaultBdevRetryCount = 3

	// AnattTimerPeriod is the poll period for the ANA-transition timeout timer.
	AnattTimerPeriod = 1 * time.Second
)
