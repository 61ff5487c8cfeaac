// Package module defines the capability interfaces a bdev module
// implements: the base vectored read/write surface every module must
// provide, plus a set of optional capability interfaces (unmap, write-zeroes,
// flush, compare, reset, abort) a module advertises by implementing them,
// mirroring the base-plus-optional-interfaces shape the bdev core's module
// layer is built on.
package module

import "context"

// IoVec is a single scatter/gather buffer, addressed the way a BdevIo's
// iovec array is: a plain byte slice the module reads from or writes into
// directly (possibly a bounce buffer handed to it by the core).
type IoVec = []byte

// Geometry describes the static limits and block layout of a module's
// backing store; the bdev core consults this to decide whether an incoming
// I/O must be split (spec §4.4.3).
type Geometry struct {
	BlockLen          uint32
	NumBlocks         uint64
	MaxRWSize         uint32 // blocks; 0 = unlimited
	MaxNumSegments    uint32 // 0 = unlimited
	MaxSegmentSize    uint32 // bytes; 0 = unlimited
	OptimalIOBoundary uint32 // blocks; 0 = none
	WriteUnitSize     uint32 // blocks; 0 = BlockLen
	MaxUnmap          uint32 // blocks per unmap range
	MaxUnmapSegments  uint32 // ranges per unmap call
	MaxWriteZeroes    uint64 // blocks per write-zeroes call
	MaxCopy           uint64 // blocks per copy call
}

// Module is the base capability every bdev module must implement: vectored
// read/write addressed in logical blocks, geometry reporting, and close.
type Module interface {
	Geometry() Geometry
	ReadAt(ctx context.Context, iovs []IoVec, offsetBlocks, numBlocks uint64) error
	WriteAt(ctx context.Context, iovs []IoVec, offsetBlocks, numBlocks uint64) error
	Close() error
}

// UnmapModule is the optional TRIM/DISCARD capability.
type UnmapModule interface {
	Module
	Unmap(ctx context.Context, offsetBlocks, numBlocks uint64) error
}

// WriteZeroesModule is the optional write-zeroes capability, distinct from
// Unmap because write-zeroes must leave reads of the range returning zero
// (whereas unmap only promises undefined content).
type WriteZeroesModule interface {
	Module
	WriteZeroes(ctx context.Context, offsetBlocks, numBlocks uint64) error
}

// FlushModule is the optional durability-barrier capability.
type FlushModule interface {
	Module
	Flush(ctx context.Context) error
}

// CompareModule is the optional compare / compare-and-write capability.
type CompareModule interface {
	Module
	Compare(ctx context.Context, iovs []IoVec, offsetBlocks, numBlocks uint64) error
}

// ResetModule is the optional capability for a module to run its own reset
// sequence when the bdev-level reset (spec §4.4.6) reaches it.
type ResetModule interface {
	Module
	Reset(ctx context.Context) error
}

// AbortModule is the optional capability for a module to cancel a specific
// in-flight I/O it is holding, identified by the same handle it was
// submitted with.
type AbortModule interface {
	Module
	Abort(ctx context.Context, handle any) error
}

// StatModule is the optional capability for a module to report
// implementation-defined statistics alongside the core's own I/O counters.
type StatModule interface {
	Module
	Stats() map[string]any
}

// ResizeModule is the optional capability for a module whose backing store
// can grow or shrink after creation.
type ResizeModule interface {
	Module
	Resize(newNumBlocks uint64) error
}
