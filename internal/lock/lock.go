// Package lock implements the LBA-range overlap and locking rules of spec
// §4.4.4: master ranges on the bdev, per-channel local copies, quiesce
// semantics, and the pending-range promotion that happens on unlock.
package lock

import "sync"

// Range is one locked (or pending-locked) LBA range. Quiesce ranges
// additionally block reads; non-quiesce ranges block writes and all other
// non-read I/O but let reads through.
type Range struct {
	Offset       uint64
	Length       uint64
	Quiesce      bool
	OwnerChannel any // identity of the channel holding the lock, for bypass checks
	LockedCtx    any
	// Acquired is not created or closed by Manager or by the bdev's
	// LockLbaRange, which polls channels for overlapping I/O instead; it
	// stays nil unless a caller sets it.
	Acquired chan struct{}
}

func (r *Range) end() uint64 { return r.Offset + r.Length }

// Overlaps reports whether r and o cover any common LBA.
func (r *Range) Overlaps(o *Range) bool {
	return r.Offset < o.end() && o.Offset < r.end()
}

// Blocks reports whether this locked range blocks an I/O of the given
// shape, per spec §4.4.4: non-quiesce ranges block writes/unmaps/
// write-zeroes/zcopy/copy/passthrough but let reads through; quiesce
// ranges additionally block reads. A bypass for the lock holder's own
// channel+ctx is handled by the caller before consulting Blocks.
func (r *Range) Blocks(isRead bool) bool {
	if isRead {
		return r.Quiesce
	}
	return true
}

// Manager owns the master list of locked and pending-locked ranges for one
// bdev, guarded by a single mutex mirroring the bdev-level spinlock spec.md
// describes for claim/lock bookkeeping.
type Manager struct {
	mu      sync.Mutex
	locked  []*Range
	pending []*Range
}

// NewManager creates an empty range-lock manager.
func NewManager() *Manager {
	return &Manager{}
}

// TryLock appends r to the locked set if it overlaps no existing locked
// range, returning true. Otherwise r is parked on the pending set and
// TryLock returns false; the caller must wait for a future Unlock to
// promote it.
func (m *Manager) TryLock(r *Range) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.locked {
		if existing.Overlaps(r) {
			m.pending = append(m.pending, r)
			return false
		}
	}
	m.locked = append(m.locked, r)
	return true
}

// Unlock removes r from the locked set and returns the subset of pending
// ranges whose overlap set has now fully cleared against both the
// remaining locked ranges and each other in submission order; those are
// promoted to locked and returned for the caller to start the per-channel
// lock fan-out on.
func (m *Manager) Unlock(r *Range) []*Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = removeRange(m.locked, r)

	var promoted []*Range
	remaining := m.pending[:0:0]
	for _, p := range m.pending {
		clear := true
		for _, existing := range m.locked {
			if existing.Overlaps(p) {
				clear = false
				break
			}
		}
		if clear {
			for _, already := range promoted {
				if already.Overlaps(p) {
					clear = false
					break
				}
			}
		}
		if clear {
			m.locked = append(m.locked, p)
			promoted = append(promoted, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	m.pending = remaining
	return promoted
}

func removeRange(ranges []*Range, target *Range) []*Range {
	out := ranges[:0:0]
	for _, r := range ranges {
		if r != target {
			out = append(out, r)
		}
	}
	return out
}

// Locked returns a snapshot of the currently locked ranges, used by the
// submit path to test overlap against an incoming I/O.
func (m *Manager) Locked() []*Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Range, len(m.locked))
	copy(out, m.locked)
	return out
}

// ChannelCopies tracks the local copies of locked ranges a single
// BdevChannel holds. The I/Os parked behind a lock gate are kept by the
// channel itself, not here.
type ChannelCopies struct {
	mu     sync.Mutex
	copies []*Range
}

// NewChannelCopies creates an empty per-channel range copy set.
func NewChannelCopies() *ChannelCopies {
	return &ChannelCopies{}
}

// Insert adds a local copy of r to this channel.
func (c *ChannelCopies) Insert(r *Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.copies = append(c.copies, r)
}

// Remove drops the local copy of r from this channel, used when the
// channel is destroyed or the master range is unlocked.
func (c *ChannelCopies) Remove(r *Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.copies = removeRange(c.copies, r)
}

// Blocking returns the first local range copy that blocks an I/O with the
// given offset/length/read-ness, or nil if none do. owner/ctx identify
// the lock holder, which is let through unconditionally.
func (c *ChannelCopies) Blocking(offset, length uint64, isRead bool, owner, ctx any) *Range {
	c.mu.Lock()
	defer c.mu.Unlock()
	probe := &Range{Offset: offset, Length: length}
	for _, r := range c.copies {
		if r.OwnerChannel == owner && r.LockedCtx == ctx {
			continue
		}
		if r.Overlaps(probe) && r.Blocks(isRead) {
			return r
		}
	}
	return nil
}
