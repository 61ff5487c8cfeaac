package bdev

import (
	"github.com/go-bdev/bdev/module"
)

// maxBatchChildren bounds how many UNMAP/WRITE_ZEROES/COPY children are
// submitted concurrently before waiting for some to complete, per spec
// §4.4.3's batching rule.
const maxBatchChildren = 8

// splitAndSubmit breaks io into bound-respecting children and submits an
// initial batch, per spec §4.4.3. The parent completes once every child has
// completed and no blocks remain to split off.
func (ch *BdevChannel) splitAndSubmit(io *BdevIo) {
	io.remaining = io.numBlocks
	io.current = io.offsetBlocks

	switch io.typ {
	case IoUnmap, IoWriteZeroes:
		ch.submitBatchChildren(io)
	default:
		ch.submitNextRWChild(io)
	}
}

// submitNextRWChild carves one bounded child off the front of the parent's
// remaining range and submits it; its completion callback advances the
// parent and submits the next child, giving the classic "one in flight"
// split behavior for read/write/compare I/O.
func (ch *BdevChannel) submitNextRWChild(parent *BdevIo) {
	if parent.remaining == 0 {
		ch.maybeCompleteParent(parent)
		return
	}

	opts := ch.bdev.opts
	childBlocks := parent.remaining
	if opts.MaxRWSize > 0 && childBlocks > uint64(opts.MaxRWSize) {
		childBlocks = uint64(opts.MaxRWSize)
	}
	if opts.OptimalIOBoundary > 0 {
		boundary := uint64(opts.OptimalIOBoundary)
		toBoundary := boundary - (parent.current % boundary)
		if toBoundary < childBlocks {
			childBlocks = toBoundary
		}
	}
	if opts.MaxNumSegments > 0 || opts.MaxSegmentSize > 0 {
		childBlocks = clampToSegmentLimits(childBlocks, parent, opts)
	}

	// Retract to a write_unit_size multiple for writes so no child leaves
	// a partial unit dangling (spec §4.4.3 tail-retraction rule).
	if parent.isWrite() && opts.WriteUnitSize > 0 && childBlocks > uint64(opts.WriteUnitSize) {
		childBlocks -= childBlocks % uint64(opts.WriteUnitSize)
	}
	if childBlocks == 0 {
		childBlocks = 1
	}

	childIovs := sliceIovecs(parent.iovs, parent.current-parent.offsetBlocks, childBlocks, uint64(opts.BlockLen))

	child := &BdevIo{
		typ: parent.typ, offsetBlocks: parent.current, numBlocks: childBlocks, iovs: childIovs,
		channel: ch, desc: parent.desc, ctx: parent.ctx, parent: parent,
		submitTsc: parent.submitTsc,
	}

	parent.current += childBlocks
	parent.remaining -= childBlocks
	parent.outstanding++

	ch.submit(child)
}

// submitBatchChildren submits up to maxBatchChildren UNMAP/WRITE_ZEROES
// children at once, respecting max_unmap/max_write_zeroes per child.
func (ch *BdevChannel) submitBatchChildren(parent *BdevIo) {
	opts := ch.bdev.opts
	var limit uint64
	switch parent.typ {
	case IoUnmap:
		limit = uint64(opts.MaxUnmap)
	case IoWriteZeroes:
		limit = opts.MaxWriteZeroes
	}
	if limit == 0 {
		limit = parent.numBlocks
	}

	for i := 0; i < maxBatchChildren && parent.remaining > 0; i++ {
		childBlocks := parent.remaining
		if childBlocks > limit {
			childBlocks = limit
		}
		child := &BdevIo{
			typ: parent.typ, offsetBlocks: parent.current, numBlocks: childBlocks,
			channel: ch, desc: parent.desc, ctx: parent.ctx, parent: parent,
			submitTsc: parent.submitTsc,
		}
		parent.current += childBlocks
		parent.remaining -= childBlocks
		parent.outstanding++
		ch.submit(child)
	}
}

// sliceIovecs extracts the iovec fragments covering
// [blockOffset, blockOffset+numBlocks) of a flattened parent iovec list.
func sliceIovecs(parentIovs []module.IoVec, blockOffset, numBlocks, blockLen uint64) []module.IoVec {
	if parentIovs == nil {
		return nil
	}
	start := blockOffset * blockLen
	end := start + numBlocks*blockLen

	var out []module.IoVec
	var pos uint64
	for _, v := range parentIovs {
		vStart, vEnd := pos, pos+uint64(len(v))
		pos = vEnd
		if vEnd <= start || vStart >= end {
			continue
		}
		lo := uint64(0)
		if start > vStart {
			lo = start - vStart
		}
		hi := uint64(len(v))
		if end < vEnd {
			hi = end - vStart
		}
		out = append(out, v[lo:hi])
	}
	return out
}

// clampToSegmentLimits shrinks childBlocks so the slice it would produce
// respects max_num_segments/max_segment_size against the parent's iovec
// layout; a conservative (smaller) child is always safe to retry later.
func clampToSegmentLimits(childBlocks uint64, parent *BdevIo, opts Opts) uint64 {
	if len(parent.iovs) == 0 {
		return childBlocks
	}
	blockLen := uint64(opts.BlockLen)
	if blockLen == 0 {
		return childBlocks
	}
	candidate := sliceIovecs(parent.iovs, parent.current-parent.offsetBlocks, childBlocks, blockLen)
	if opts.MaxNumSegments > 0 && uint32(len(candidate)) > opts.MaxNumSegments {
		// Halve until the segment count fits; a block-aligned binary
		// search is good enough here since this only runs on the
		// already-rare oversized-iovec path.
		for uint32(len(candidate)) > opts.MaxNumSegments && childBlocks > 1 {
			childBlocks /= 2
			candidate = sliceIovecs(parent.iovs, parent.current-parent.offsetBlocks, childBlocks, blockLen)
		}
	}
	if opts.MaxSegmentSize > 0 {
		for _, v := range candidate {
			if uint32(len(v)) > opts.MaxSegmentSize && childBlocks > 1 {
				childBlocks /= 2
				return clampToSegmentLimits(childBlocks, parent, opts)
			}
		}
	}
	return childBlocks
}

// childCompleted is invoked when one split child reaches a terminal state.
// The parent completes once every child has finished and no blocks remain
// to split off (spec §4.4.3: "outstanding==0 && remaining_num_blocks==0").
func (parent *BdevIo) childCompleted(status Status) {
	ch := parent.channel
	ch.mu.Lock()
	parent.outstanding--
	if status != StatusSuccess && parent.status != StatusFailed {
		parent.status = StatusFailed
		parent.err = NewError("split", ErrCodeIOFailure, "child I/O failed")
	}
	done := parent.outstanding == 0 && parent.remaining == 0
	ch.mu.Unlock()

	if !done {
		if parent.status != StatusFailed {
			ch.submitNextChild(parent)
		}
		return
	}

	if parent.status == 0 {
		parent.status = StatusSuccess
	}
	if parent.cb != nil {
		parent.cb(Completion{Io: parent, Status: parent.status, Err: parent.err})
	}
	ch.releaseIo(parent)
}

// submitNextChild continues a parent's split after one child completes.
func (ch *BdevChannel) submitNextChild(parent *BdevIo) {
	switch parent.typ {
	case IoUnmap, IoWriteZeroes:
		ch.submitBatchChildren(parent)
	default:
		ch.submitNextRWChild(parent)
	}
}

// maybeCompleteParent completes a parent immediately if it had nothing to
// split in the first place (remaining==0 on entry).
func (ch *BdevChannel) maybeCompleteParent(parent *BdevIo) {
	parent.status = StatusSuccess
	if parent.cb != nil {
		parent.cb(Completion{Io: parent, Status: parent.status})
	}
	ch.releaseIo(parent)
}
