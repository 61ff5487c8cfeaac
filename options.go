package bdev

import "github.com/go-bdev/bdev/internal/constants"

// ClaimType mirrors internal/claim.Type at the public API boundary so
// callers don't need to import the internal package directly.
type ClaimType int

const (
	ClaimNone ClaimType = iota
	ClaimExclWrite
	ClaimReadManyWriteOne
	ClaimReadManyWriteNone
	ClaimReadManyWriteShared
)

// Opts describes the static geometry and limits of a bdev, the Go
// analogue of struct spdk_bdev's tunable fields (spec §3: block_len,
// block_count, write_unit_size, optimal_io_boundary, max_* limits).
type Opts struct {
	Name              string
	Aliases           []string
	BlockLen          uint32
	BlockCount        uint64
	WriteUnitSize     uint32
	OptimalIOBoundary uint32

	MaxRWSize        uint32
	MaxSegmentSize   uint32
	MaxNumSegments   uint32
	MaxUnmap         uint32
	MaxUnmapSegments uint32
	MaxWriteZeroes   uint64
	MaxCopy          uint64

	MDLen         uint32
	MDInterleave  bool
	DIFType       int
	DIFCheckFlags uint32
	WriteCache    bool

	UUID string
}

// DefaultOpts returns an Opts populated with the bdev core's defaults.
func DefaultOpts(name string, blockCount uint64) Opts {
	return Opts{
		Name:       name,
		BlockLen:   constants.DefaultBlockLen,
		BlockCount: blockCount,
		MaxRWSize:  constants.DefaultMaxRWSize,
	}
}

// QosOpts configures the four QoS limits at bdev-enable time. Zero means
// "unlimited" for that bucket, per spec §4.2.
type QosOpts struct {
	RWIOPSLimit   int64
	RWBPSLimitMiB int64
	RBPSLimitMiB  int64
	WBPSLimitMiB  int64
}

// OpenOpts configures how a descriptor opens a bdev (spec §3 BdevDesc:
// write, timeout config, event callback, per-desc claim).
type OpenOpts struct {
	Write      bool
	ClaimType  ClaimType
	SharedKey  uint64
	TimeoutSec float64
	// OnEvent is invoked when the underlying bdev is removed or resized
	// while this descriptor is open.
	OnEvent func(event string)
}
