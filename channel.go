package bdev

import (
	"sync"

	"github.com/go-bdev/bdev/internal/iopool"
	"github.com/go-bdev/bdev/internal/lock"
)

// BdevChannel is per-thread state for a Bdev (spec §3 BdevChannel): the
// submitted-I/O list, the locked list (I/Os held behind an LBA-range
// lock), the NOMEM retry list, the QoS queue, and (bypassed here, see
// nvme package) the multipath io_path set.
type BdevChannel struct {
	bdev   *Bdev
	thread string
	refs   int

	mu              sync.Mutex
	submitted       map[*BdevIo]struct{}
	locked          []*BdevIo
	nomem           []*BdevIo
	qosQueue        []*BdevIo
	resetInProgress bool

	rangeCopies *lock.ChannelCopies
	ioCache     *iopool.Channel[*BdevIo]
	stats       *Stats
}

func newBdevChannel(b *Bdev, thread string) *BdevChannel {
	ch := &BdevChannel{
		bdev:        b,
		thread:      thread,
		refs:        1,
		submitted:   make(map[*BdevIo]struct{}),
		rangeCopies: lock.NewChannelCopies(),
		ioCache:     iopool.NewChannel(b.ioPool),
		stats:       NewStats(),
	}
	return ch
}

// Bdev returns the owning bdev.
func (ch *BdevChannel) Bdev() *Bdev { return ch.bdev }

// Thread returns this channel's thread identity.
func (ch *BdevChannel) Thread() string { return ch.thread }

// Stats returns this channel's own statistics, separate from the bdev's
// aggregate Stats.
func (ch *BdevChannel) Stats() *Stats { return ch.stats }

// Drain implements qos.Drainer: release as many QoS-queued I/Os as the
// refreshed quota admits, in FIFO order, per spec §4.2 step 4.
func (ch *BdevChannel) Drain() {
	ch.mu.Lock()
	q := ch.bdev.qos
	if q == nil || len(ch.qosQueue) == 0 {
		ch.mu.Unlock()
		return
	}
	var released []*BdevIo
	remaining := ch.qosQueue[:0:0]
	for _, io := range ch.qosQueue {
		if q.Admit(io.qosClass(), int64(io.byteLen())) {
			remaining = append(remaining, io)
		} else {
			released = append(released, io)
		}
	}
	ch.qosQueue = remaining
	ch.mu.Unlock()

	for _, io := range released {
		ch.resubmit(io)
	}
}

func (ch *BdevChannel) enqueueQos(io *BdevIo) {
	ch.mu.Lock()
	ch.qosQueue = append(ch.qosQueue, io)
	ch.mu.Unlock()
}

func (ch *BdevChannel) enqueueLocked(io *BdevIo) {
	ch.mu.Lock()
	ch.locked = append(ch.locked, io)
	ch.mu.Unlock()
}

func (ch *BdevChannel) enqueueNomem(io *BdevIo) {
	ch.mu.Lock()
	ch.nomem = append(ch.nomem, io)
	ch.mu.Unlock()
}

// drainLocked releases every I/O in the locked list back into the submit
// path, called when unlock() clears a range, per spec §4.4.4.
func (ch *BdevChannel) drainLocked() {
	ch.mu.Lock()
	pending := ch.locked
	ch.locked = nil
	ch.mu.Unlock()
	for _, io := range pending {
		ch.resubmit(io)
	}
}

// drainNomem retries every NOMEM-queued I/O, called from a completion on
// the shared resource or the fallback poller (spec §4.4.2 step 3).
func (ch *BdevChannel) drainNomem() {
	ch.mu.Lock()
	pending := ch.nomem
	ch.nomem = nil
	ch.mu.Unlock()
	for _, io := range pending {
		ch.resubmit(io)
	}
}

func (ch *BdevChannel) markSubmitted(io *BdevIo) {
	ch.mu.Lock()
	ch.submitted[io] = struct{}{}
	ch.mu.Unlock()
}

func (ch *BdevChannel) unmarkSubmitted(io *BdevIo) {
	ch.mu.Lock()
	delete(ch.submitted, io)
	ch.mu.Unlock()
}

// outstandingOverlap reports whether any currently submitted I/O on this
// channel overlaps [offset, offset+length), used by lock() to know when
// it is safe to report the lock acquired (spec §4.4.4).
func (ch *BdevChannel) outstandingOverlap(offset, length uint64) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	end := offset + length
	for io := range ch.submitted {
		if io.offsetBlocks < end && offset < io.offsetBlocks+io.numBlocks {
			return true
		}
	}
	return false
}

// setResetInProgress sets or clears the RESET_IN_PROGRESS flag consulted
// by the submit pipeline's gate 1 (spec §4.4.1, §4.4.6).
func (ch *BdevChannel) setResetInProgress(v bool) {
	ch.mu.Lock()
	ch.resetInProgress = v
	ch.mu.Unlock()
}

func (ch *BdevChannel) isResetInProgress() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.resetInProgress
}

// abortQueuedOnReset aborts every NOMEM, locked, and QoS-queued I/O on
// this channel, per spec §4.4.6's reset fan-out.
func (ch *BdevChannel) abortQueuedOnReset() {
	ch.mu.Lock()
	toAbort := append(append(ch.nomem, ch.locked...), ch.qosQueue...)
	ch.nomem, ch.locked, ch.qosQueue = nil, nil, nil
	ch.mu.Unlock()
	for _, io := range toAbort {
		io.completeLocked(StatusAborted)
	}
}

// qosLimitOwner reports whether this channel owns the bdev's QoS poller,
// used so callers know which channel's goroutine should drive Tick().
func (ch *BdevChannel) qosLimitOwner() bool {
	ch.bdev.mu.Lock()
	defer ch.bdev.mu.Unlock()
	return ch.bdev.qosOwner == ch
}

// TickQos runs one pass of the bdev's QoS poller if this channel owns it.
// A caller drives this on whatever cadence its runtime uses for timers
// (e.g. a ticker goroutine), matching spec §4.2's "dedicated owner thread
// runs the refill poller".
func (ch *BdevChannel) TickQos() {
	if !ch.qosLimitOwner() {
		return
	}
	ch.bdev.mu.Lock()
	poller := ch.bdev.qosPoller
	ch.bdev.mu.Unlock()
	if poller != nil {
		poller.Tick()
	}
}
