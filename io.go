package bdev

import (
	"context"
	"time"

	"github.com/go-bdev/bdev/internal/qos"
	"github.com/go-bdev/bdev/module"
)

// IoType enumerates the kinds of I/O a BdevIo carries.
type IoType int

const (
	IoRead IoType = iota
	IoWrite
	IoUnmap
	IoWriteZeroes
	IoFlush
	IoCompare
	IoCompareAndWrite
	IoNvmeAdmin
	IoNvmeIO
	IoReset
	IoAbort
)

// Status is the terminal (or in-flight) state of a BdevIo.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailed
	StatusNomem
	StatusAborted
)

// Completion carries a finished BdevIo's outcome to the submitter's
// callback.
type Completion struct {
	Io     *BdevIo
	Status Status
	Err    error
}

// CompletionFunc is invoked exactly once when a BdevIo reaches a terminal
// status.
type CompletionFunc func(Completion)

// BdevIo is one outstanding I/O (spec §3 BdevIo): type, LBA range,
// iovecs, status, and the split/retry bookkeeping the submit/completion
// pipelines maintain.
type BdevIo struct {
	typ          IoType
	offsetBlocks uint64
	numBlocks    uint64
	iovs         []module.IoVec

	channel *BdevChannel
	desc    *BdevDesc
	ctx     context.Context
	cbCtx   any
	cb      CompletionFunc

	status    Status
	err       error
	submitTsc int64

	// Split bookkeeping (spec §4.4.3).
	parent      *BdevIo
	outstanding int
	remaining   uint64
	current     uint64

	// Lock-gate bookkeeping: set when this I/O is the holder of a range
	// lock rather than a normal data I/O blocked by one.
	lockOwnerCtx any

	submitted bool
	// pooled marks an I/O as having been handed out by acquireIo, so its
	// terminal completion knows to return it to the channel's pool cache
	// rather than leaving it for the garbage collector.
	pooled bool
}

// Reset implements iopool.Descriptor so BdevIo can be pooled.
func (io *BdevIo) Reset() {
	*io = BdevIo{}
}

func (io *BdevIo) isRead() bool {
	return io.typ == IoRead
}

func (io *BdevIo) isWrite() bool {
	switch io.typ {
	case IoWrite, IoUnmap, IoWriteZeroes, IoCompareAndWrite:
		return true
	default:
		return false
	}
}

func (io *BdevIo) byteLen() uint64 {
	return io.numBlocks * uint64(io.channel.bdev.opts.BlockLen)
}

func (io *BdevIo) qosClass() qos.IOClass {
	switch {
	case io.isRead():
		return qos.ClassRead
	case io.isWrite():
		return qos.ClassWrite
	default:
		return qos.ClassOther
	}
}

// Submit runs the submit pipeline of spec §4.4.1: reset gate, LBA-lock
// gate, split gate, QoS gate, then the module submit call. The
// bounce/accel/metadata stage is skipped, and there is no NOMEM gate before
// the module call: an I/O is parked on the NOMEM list only when its own
// module call completes with ErrCodeNoMemory.
func (ch *BdevChannel) Submit(ctx context.Context, desc *BdevDesc, typ IoType, offsetBlocks, numBlocks uint64, iovs []module.IoVec, cbCtx any, cb CompletionFunc) *BdevIo {
	io := ch.acquireIo()
	io.typ, io.offsetBlocks, io.numBlocks, io.iovs = typ, offsetBlocks, numBlocks, iovs
	io.channel, io.desc, io.ctx, io.cbCtx, io.cb = ch, desc, contextOrBackground(ctx), cbCtx, cb
	io.submitTsc = time.Now().UnixNano()
	io.pooled = true
	ch.submit(io)
	return io
}

// acquireIo pulls a BdevIo from this channel's pool cache, blocking (via a
// poll loop that sleeps 1us between tries) until one frees up if both the cache and the global pool are exhausted, per spec
// §4.3's wait-queue starvation-avoidance rule.
func (ch *BdevChannel) acquireIo() *BdevIo {
	if io, ok := ch.ioCache.Get(); ok {
		return io
	}
	ch.ioCache.MarkWaiting()
	for {
		if io, ok := ch.ioCache.Get(); ok {
			return io
		}
		time.Sleep(time.Microsecond)
	}
}

func (ch *BdevChannel) submit(io *BdevIo) {
	// Gate 1: reset-in-progress.
	if ch.isResetInProgress() {
		io.completeLocked(StatusAborted)
		return
	}

	// Gate 2: LBA-range lock.
	if blocker := ch.rangeCopies.Blocking(io.offsetBlocks, io.numBlocks, io.isRead(), ch, io.lockOwnerCtx); blocker != nil {
		ch.enqueueLocked(io)
		return
	}

	// Gate 3: split.
	if ch.needsSplit(io) {
		ch.splitAndSubmit(io)
		return
	}

	// Gate 4: QoS.
	b := ch.bdev
	b.mu.Lock()
	q := b.qos
	b.mu.Unlock()
	if q != nil {
		if q.Admit(io.qosClass(), int64(io.byteLen())) {
			ch.enqueueQos(io)
			return
		}
	}

	// Gate 5 (bounce/accel/metadata) is out of scope: the module layer
	// here always operates on caller-supplied buffers directly.

	// Gate 6/7: submit to the module, tracking outstanding counts.
	ch.dispatch(io)
}

// resubmit re-enters the pipeline for an I/O that was parked by a gate
// and has just been released (lock drain, QoS drain, NOMEM retry).
func (ch *BdevChannel) resubmit(io *BdevIo) {
	ch.submit(io)
}

func (ch *BdevChannel) needsSplit(io *BdevIo) bool {
	opts := ch.bdev.opts
	switch io.typ {
	case IoRead, IoWrite, IoCompare, IoCompareAndWrite:
		if opts.MaxRWSize > 0 && io.numBlocks > uint64(opts.MaxRWSize) {
			return true
		}
		if opts.MaxNumSegments > 0 && uint32(len(io.iovs)) > opts.MaxNumSegments {
			return true
		}
		if opts.MaxSegmentSize > 0 {
			for _, v := range io.iovs {
				if uint32(len(v)) > opts.MaxSegmentSize {
					return true
				}
			}
		}
		if opts.OptimalIOBoundary > 0 && crossesBoundary(io.offsetBlocks, io.numBlocks, uint64(opts.OptimalIOBoundary)) {
			return true
		}
		if io.isWrite() && opts.WriteUnitSize > 0 && io.numBlocks%uint64(opts.WriteUnitSize) != 0 {
			return true
		}
	case IoUnmap:
		if opts.MaxUnmap > 0 && io.numBlocks > uint64(opts.MaxUnmap) {
			return true
		}
	case IoWriteZeroes:
		if opts.MaxWriteZeroes > 0 && io.numBlocks > opts.MaxWriteZeroes {
			return true
		}
	}
	return false
}

func crossesBoundary(offset, numBlocks, boundary uint64) bool {
	if boundary == 0 {
		return false
	}
	return offset/boundary != (offset+numBlocks-1)/boundary
}

// dispatch submits io to the module, incrementing outstanding counts
// before the call per spec §4.4.1 step 7, and handling NOMEM per §4.4.2.
func (ch *BdevChannel) dispatch(io *BdevIo) {
	ch.markSubmitted(io)
	io.submitted = true

	var err error
	mod := ch.bdev.module
	switch io.typ {
	case IoRead:
		err = mod.ReadAt(io.ctx, io.iovs, io.offsetBlocks, io.numBlocks)
	case IoWrite:
		err = mod.WriteAt(io.ctx, io.iovs, io.offsetBlocks, io.numBlocks)
	case IoUnmap:
		if u, ok := mod.(module.UnmapModule); ok {
			err = u.Unmap(io.ctx, io.offsetBlocks, io.numBlocks)
		} else {
			err = NewError("unmap", ErrCodeUnsupported, "module does not support unmap")
		}
	case IoWriteZeroes:
		if wz, ok := mod.(module.WriteZeroesModule); ok {
			err = wz.WriteZeroes(io.ctx, io.offsetBlocks, io.numBlocks)
		} else {
			err = NewError("write_zeroes", ErrCodeUnsupported, "module does not support write-zeroes")
		}
	case IoFlush:
		if f, ok := mod.(module.FlushModule); ok {
			err = f.Flush(io.ctx)
		} else {
			err = NewError("flush", ErrCodeUnsupported, "module does not support flush")
		}
	case IoCompare, IoCompareAndWrite:
		if c, ok := mod.(module.CompareModule); ok {
			err = c.Compare(io.ctx, io.iovs, io.offsetBlocks, io.numBlocks)
		} else {
			err = NewError("compare", ErrCodeUnsupported, "module does not support compare")
		}
	default:
		err = NewError("submit", ErrCodeUnsupported, "unhandled I/O type")
	}

	ch.complete(io, err)
}

// complete runs the completion pipeline of spec §4.4.2: NOMEM handling,
// stats, and invoking the user callback.
func (ch *BdevChannel) complete(io *BdevIo, err error) {
	ch.unmarkSubmitted(io)
	io.submitted = false
	start := time.Unix(0, io.submitTsc)
	latency := uint64(time.Since(start).Nanoseconds())

	if IsCode(err, ErrCodeNoMemory) {
		io.status = StatusNomem
		ch.enqueueNomem(io)
		return
	}

	if err != nil {
		io.status = StatusFailed
		io.err = err
	} else {
		io.status = StatusSuccess
	}

	ch.recordStats(io, latency, err == nil)

	if io.parent != nil {
		io.parent.childCompleted(io.status)
		return
	}

	if io.cb != nil {
		io.cb(Completion{Io: io, Status: io.status, Err: io.err})
	}
	ch.releaseIo(io)
}

func (ch *BdevChannel) recordStats(io *BdevIo, latencyNs uint64, success bool) {
	bytes := io.byteLen()
	switch io.typ {
	case IoRead:
		ch.stats.RecordRead(bytes, latencyNs, success)
		ch.bdev.stats.RecordRead(bytes, latencyNs, success)
		ch.bdev.observer.ObserveRead(bytes, latencyNs, success)
	case IoWrite:
		ch.stats.RecordWrite(bytes, latencyNs, success)
		ch.bdev.stats.RecordWrite(bytes, latencyNs, success)
		ch.bdev.observer.ObserveWrite(bytes, latencyNs, success)
	case IoUnmap, IoWriteZeroes:
		ch.stats.RecordUnmap(bytes, latencyNs, success)
		ch.bdev.stats.RecordUnmap(bytes, latencyNs, success)
		ch.bdev.observer.ObserveUnmap(bytes, latencyNs, success)
	case IoFlush:
		ch.stats.RecordFlush(latencyNs, success)
		ch.bdev.stats.RecordFlush(latencyNs, success)
		ch.bdev.observer.ObserveFlush(latencyNs, success)
	case IoCompare, IoCompareAndWrite:
		ch.stats.RecordCompare(latencyNs, success)
		ch.bdev.stats.RecordCompare(latencyNs, success)
		ch.bdev.observer.ObserveCompare(latencyNs, success)
	case IoNvmeAdmin, IoNvmeIO:
		ch.stats.RecordNvmeIO(latencyNs, success)
		ch.bdev.stats.RecordNvmeIO(latencyNs, success)
		ch.bdev.observer.ObserveNvmeIO(latencyNs, success)
	}
}

// completeLocked completes io with a fixed status without consulting the
// module (used by the reset/abort/lock-reject paths).
func (io *BdevIo) completeLocked(status Status) {
	io.status = status
	if io.parent != nil {
		io.parent.childCompleted(status)
		return
	}
	if io.cb != nil {
		io.cb(Completion{Io: io, Status: status})
	}
	if io.channel != nil {
		io.channel.releaseIo(io)
	}
}

// releaseIo returns a top-level (non-split-child) pooled I/O to this
// channel's cache once it has reached a terminal state and its callback
// has run, closing the loop on spec §4.3's get/put pool protocol.
func (ch *BdevChannel) releaseIo(io *BdevIo) {
	if io.pooled && io.parent == nil {
		ch.ioCache.Put(io)
	}
}
