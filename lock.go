package bdev

import (
	"time"

	"github.com/go-bdev/bdev/internal/constants"
	"github.com/go-bdev/bdev/internal/lock"
)

// LockLbaRange acquires an LBA-range lock on b, per spec §4.4.4: the range
// is added to the bdev's master lock list (or parked pending if it
// overlaps an existing lock), propagated as a local copy to every open
// channel, and then this call blocks — polling each channel's outstanding
// I/O every 100us — until no overlapping I/O remains in flight. Quiesce
// additionally blocks reads; a non-quiesce lock lets reads through.
func (b *Bdev) LockLbaRange(owner *BdevChannel, offsetBlocks, lengthBlocks uint64, quiesce bool, ctx any) (*lock.Range, error) {
	r := &lock.Range{
		Offset: offsetBlocks, Length: lengthBlocks, Quiesce: quiesce,
		OwnerChannel: owner, LockedCtx: ctx,
	}

	if !b.ranges.TryLock(r) {
		// Parked on the pending list; a future Unlock will promote it and
		// this call resumes waiting for outstanding-I/O clearance below
		// once that happens. We block here until we observe ourselves
		// among the locked set.
		for !rangeIsLocked(b.ranges, r) {
			time.Sleep(constants.LockPollInterval)
		}
	}

	b.mu.Lock()
	channels := make([]*BdevChannel, 0, len(b.channels))
	for ch := range b.channels {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	for _, ch := range channels {
		ch.rangeCopies.Insert(r)
	}

	for _, ch := range channels {
		for ch.outstandingOverlap(offsetBlocks, lengthBlocks) {
			time.Sleep(constants.LockPollInterval)
		}
	}

	return r, nil
}

// UnlockLbaRange releases r, then drains any I/O each channel had parked
// behind it, and lets any pending ranges whose overlap has now cleared
// begin their own outstanding-I/O wait (spec §4.4.4's unlock-time
// promotion).
func (b *Bdev) UnlockLbaRange(r *lock.Range) []*lock.Range {
	promoted := b.ranges.Unlock(r)

	b.mu.Lock()
	channels := make([]*BdevChannel, 0, len(b.channels))
	for ch := range b.channels {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	for _, ch := range channels {
		ch.rangeCopies.Remove(r)
		ch.drainLocked()
	}

	return promoted
}

func rangeIsLocked(m *lock.Manager, target *lock.Range) bool {
	for _, r := range m.Locked() {
		if r == target {
			return true
		}
	}
	return false
}
