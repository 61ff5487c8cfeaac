package qos

import (
	"testing"
	"time"

	"github.com/go-bdev/bdev/internal/clock"
	"github.com/go-bdev/bdev/internal/constants"
)

func TestNormalizeIOPSRoundsUp(t *testing.T) {
	if got := normalizeIOPS(1500); got != 2000 {
		t.Fatalf("expected 2000, got %d", got)
	}
	if got := normalizeIOPS(0); got != 0 {
		t.Fatalf("expected 0 to stay 0 (disabled), got %d", got)
	}
}

func TestAdmitRejectsWhenExhausted(t *testing.T) {
	q := NewQos(1000000, 0, 0, 0)
	// 1,000,000 IOPS is 1000 I/Os per 1ms timeslice: first 1000 admits
	// should succeed.
	for i := 0; i < 1000; i++ {
		if q.Admit(ClassRead, 4096) {
			t.Fatalf("unexpected rejection at iteration %d", i)
		}
	}
	if !q.Admit(ClassRead, 4096) {
		t.Fatal("expected the 1001st admit to be rejected")
	}
}

func TestAdmitRewindsOnLaterRejection(t *testing.T) {
	// RW-IOPS has ample quota, RW-BPS has almost none: the IOPS bucket
	// must be rewound when the BPS bucket rejects the same I/O.
	q := NewQos(1000000, 1, 0, 0)
	// The first large write is admitted (the BPS bucket still had a
	// positive balance) and drives the BPS bucket negative.
	if q.Admit(ClassWrite, 10*1024*1024) {
		t.Fatal("expected the first write to be admitted as the allowed overrun")
	}
	iopsBefore := q.Limit(RWIOPS).remaining.Load()
	rejected := q.Admit(ClassWrite, 10*1024*1024)
	if !rejected {
		t.Fatal("expected rejection due to exhausted BPS bucket")
	}
	if got := q.Limit(RWIOPS).remaining.Load(); got != iopsBefore {
		t.Fatalf("expected RW-IOPS rewound to %d, got %d", iopsBefore, got)
	}
}

func TestRBPSOnlyChargesReads(t *testing.T) {
	q := NewQos(0, 0, 1, 0)
	if q.Admit(ClassWrite, 999*1024*1024) {
		t.Fatal("writes must not be charged against R-BPS")
	}
}

func TestRefillCarriesOverrun(t *testing.T) {
	l := NewLimit(RWIOPS, 1000)
	l.remaining.Store(-50)
	l.refill(1)
	if got := l.remaining.Load(); got != 950 {
		t.Fatalf("expected 950 (1000 - 50 overrun), got %d", got)
	}
}

type countingDrainer struct{ n int }

func (d *countingDrainer) Drain() { d.n++ }

func TestPollerTickDrainsOnRefill(t *testing.T) {
	mc := clock.NewManual(0)
	q := NewQos(1000, 0, 0, 0)
	p := NewPoller(q, mc)
	d := &countingDrainer{}
	p.AddDrainer(d)

	p.Tick()
	if d.n != 0 {
		t.Fatalf("expected no drain before a timeslice elapses, got %d", d.n)
	}

	mc.Advance(time.Duration(constants.QosTimesliceNs))
	p.Tick()
	if d.n != 1 {
		t.Fatalf("expected one drain after a timeslice elapses, got %d", d.n)
	}
}
