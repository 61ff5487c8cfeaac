// Package qos implements the four-bucket token-bucket limiter described in
// spec §4.2: RW-IOPS, RW-BPS, R-BPS and W-BPS, gated in a fixed order with
// rewind-on-later-rejection semantics, refilled by a single timeslice
// poller per bdev.
package qos

import (
	"sync/atomic"

	"github.com/go-bdev/bdev/internal/constants"
)

// Kind identifies which of the four independent buckets a Limit tracks.
type Kind int

const (
	RWIOPS Kind = iota
	RWBPS
	RBPS
	WBPS
)

// IOClass describes the operation being metered, used to decide which
// kinds a given I/O is charged against.
type IOClass int

const (
	ClassRead IOClass = iota
	ClassWrite
	ClassOther // NVMe passthrough, zcopy-start: counted against RW-IOPS/RW-BPS only
)

// Limit is one token bucket. remaining is a relaxed-atomic counter that may
// go negative; a negative value is the allowed overrun carried into the
// next timeslice.
type Limit struct {
	kind            Kind
	maxPerTimeslice int64
	remaining       atomic.Int64
}

// NewLimit creates a limit with the given per-timeslice quota. A
// maxPerTimeslice of 0 means the limit is disabled and never rejects.
func NewLimit(kind Kind, maxPerTimeslice int64) *Limit {
	l := &Limit{kind: kind, maxPerTimeslice: maxPerTimeslice}
	l.remaining.Store(maxPerTimeslice)
	return l
}

// Enabled reports whether this limit actually meters anything.
func (l *Limit) Enabled() bool { return l.maxPerTimeslice > 0 }

// admit attempts to decrement remaining by cost. It returns true if the
// I/O must be queued (rejected), matching spec §4.2's queue(limit, io)
// return convention: fetch_sub, then if new+cost>0 the admit succeeds;
// otherwise rewind via fetch_add and report "queue it".
func (l *Limit) admit(cost int64) bool {
	if !l.Enabled() {
		return false
	}
	newVal := l.remaining.Add(-cost)
	if newVal+cost > 0 {
		return false
	}
	l.remaining.Add(cost)
	return true
}

// rewind adds cost back to remaining; used when a later limit in the chain
// rejects an I/O this limit already admitted.
func (l *Limit) rewind(cost int64) {
	if !l.Enabled() {
		return
	}
	l.remaining.Add(cost)
}

// refill implements step 2-3 of the timeslice poller for a single limit:
// exchange remaining with 0, re-adding it if negative (carrying overrun),
// then add back ticks*maxPerTimeslice.
func (l *Limit) refill(ticks int64) {
	if !l.Enabled() {
		return
	}
	old := l.remaining.Swap(0)
	if old < 0 {
		l.remaining.Add(old)
	}
	if ticks > 0 {
		l.remaining.Add(ticks * l.maxPerTimeslice)
	}
}

// costFor returns the charge this limit's kind incurs for the given class
// and byte length, or 0 if this kind doesn't meter this class at all.
func (l *Limit) costFor(class IOClass, nbytes int64) int64 {
	switch l.kind {
	case RWIOPS:
		return 1
	case RWBPS:
		return nbytes
	case RBPS:
		if class == ClassRead {
			return nbytes
		}
		return 0
	case WBPS:
		if class == ClassWrite {
			return nbytes
		}
		return 0
	default:
		return 0
	}
}

// Qos is the set of four limits attached to one bdev. Limits are iterated
// in a fixed order (RWIOPS, RWBPS, RBPS, WBPS) so that rewind on a later
// rejection always unwinds a deterministic prefix.
type Qos struct {
	limits [4]*Limit
}

// NewQos creates a Qos with the four limits in canonical order. The IOPS
// limit is per second and the bandwidth limits are MiB/s; each is scaled to
// the quota of one QosTimesliceNs window. A nil *Limit for a bucket means
// that bucket is not configured (equivalent to Enabled()==false).
func NewQos(rwIOPS, rwBPS, rBPS, wBPS int64) *Qos {
	slicesPerSec := int64(1e9) / constants.QosTimesliceNs
	return &Qos{limits: [4]*Limit{
		NewLimit(RWIOPS, normalizeIOPS(rwIOPS)/slicesPerSec),
		NewLimit(RWBPS, normalizeBPS(rwBPS)/slicesPerSec),
		NewLimit(RBPS, normalizeBPS(rBPS)/slicesPerSec),
		NewLimit(WBPS, normalizeBPS(wBPS)/slicesPerSec),
	}}
}

// normalizeIOPS rounds a nonzero IOPS limit up to the configured minimum
// multiple, per spec §4.2.
func normalizeIOPS(v int64) int64 {
	if v <= 0 {
		return 0
	}
	return roundUp(v, constants.MinIOPSLimit)
}

// normalizeBPS converts a MiB/s limit to bytes/s, rounding the MiB value up
// to the configured minimum.
func normalizeBPS(mib int64) int64 {
	if mib <= 0 {
		return 0
	}
	return roundUp(mib, constants.MinBPSLimitMiB) * constants.BytesPerMiB
}

func roundUp(v, multiple int64) int64 {
	if multiple <= 0 {
		return v
	}
	if rem := v % multiple; rem != 0 {
		return v + (multiple - rem)
	}
	return v
}

// Admit runs the gate discipline of spec §4.2: iterate limits in fixed
// order, and on the first rejection, rewind every previously admitted
// limit and report that the I/O must be queued.
func (q *Qos) Admit(class IOClass, nbytes int64) bool {
	admitted := make([]int, 0, len(q.limits))
	for i, l := range q.limits {
		if l == nil || !l.Enabled() {
			continue
		}
		cost := l.costFor(class, nbytes)
		if cost == 0 {
			continue
		}
		if l.admit(cost) {
			for _, j := range admitted {
				q.limits[j].rewind(q.limits[j].costFor(class, nbytes))
			}
			return true
		}
		admitted = append(admitted, i)
	}
	return false
}

// Refill runs steps 2-3 of the timeslice poller across all four limits for
// the given number of elapsed timeslice ticks.
func (q *Qos) Refill(ticks int64) {
	for _, l := range q.limits {
		if l != nil {
			l.refill(ticks)
		}
	}
}

// Limit returns the configured limit for the given kind, or nil if unset.
func (q *Qos) Limit(kind Kind) *Limit {
	return q.limits[kind]
}
