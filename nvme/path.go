package nvme

import (
	"sync"
	"time"
)

// PathId is one entry in a controller's trid list (spec NvmePathId): a
// transport id plus the failover bookkeeping failover_trid needs.
type PathId struct {
	Trid          TransportId
	LastFailedTsc int64
}

// TridList is the FIFO of PathId spec §4.5.5 describes, kept as a slice,
// with the head always equal to the active trid.
type TridList struct {
	mu      sync.Mutex
	entries []*PathId
}

// NewTridList creates a trid list with head as its sole (active) entry.
func NewTridList(head TransportId) *TridList {
	return &TridList{entries: []*PathId{{Trid: head}}}
}

// Active returns the current head (active) trid.
func (l *TridList) Active() *PathId {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	return l.entries[0]
}

// Add appends an alternate trid to the tail of the list.
func (l *TridList) Add(trid TransportId) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, &PathId{Trid: trid})
}

// Failover marks the current head failed and moves to the next entry, per
// spec §4.5.5's failover_trid(remove, start). If remove is true the failed
// entry is dropped entirely; otherwise it is rotated to the tail.
func (l *TridList) Failover(remove bool, now int64) *PathId {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	failed := l.entries[0]
	failed.LastFailedTsc = now
	rest := l.entries[1:]
	if remove {
		l.entries = rest
	} else {
		l.entries = append(rest, failed)
	}
	if len(l.entries) == 0 {
		return nil
	}
	return l.entries[0]
}

// Len reports how many trid entries remain.
func (l *TridList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// reconnectDelayElapsed reports whether enough time has passed since p last
// failed for it to be worth retrying, per spec §4.5.3 step 6.
func reconnectDelayElapsed(p *PathId, minDelay time.Duration, nowNs int64) bool {
	if p.LastFailedTsc == 0 {
		return true
	}
	return nowNs-p.LastFailedTsc >= int64(minDelay)
}
