package lock

import "testing"

func TestOverlaps(t *testing.T) {
	a := &Range{Offset: 0, Length: 10}
	b := &Range{Offset: 5, Length: 10}
	c := &Range{Offset: 10, Length: 10}
	if !a.Overlaps(b) {
		t.Fatal("expected a to overlap b")
	}
	if a.Overlaps(c) {
		t.Fatal("expected a not to overlap c (adjacent, not overlapping)")
	}
}

func TestBlocksReadVsWrite(t *testing.T) {
	plain := &Range{Quiesce: false}
	if plain.Blocks(true) {
		t.Fatal("non-quiesce range must not block reads")
	}
	if !plain.Blocks(false) {
		t.Fatal("non-quiesce range must block writes")
	}

	quiesced := &Range{Quiesce: true}
	if !quiesced.Blocks(true) {
		t.Fatal("quiesce range must block reads")
	}
	if !quiesced.Blocks(false) {
		t.Fatal("quiesce range must block writes")
	}
}

func TestTryLockOverlapGoesToPending(t *testing.T) {
	m := NewManager()
	r1 := &Range{Offset: 0, Length: 10}
	r2 := &Range{Offset: 5, Length: 10}

	if !m.TryLock(r1) {
		t.Fatal("expected first lock to succeed immediately")
	}
	if m.TryLock(r2) {
		t.Fatal("expected overlapping lock to be parked pending")
	}
}

func TestUnlockPromotesClearedPending(t *testing.T) {
	m := NewManager()
	r1 := &Range{Offset: 0, Length: 10}
	r2 := &Range{Offset: 5, Length: 10}

	m.TryLock(r1)
	m.TryLock(r2)

	promoted := m.Unlock(r1)
	if len(promoted) != 1 || promoted[0] != r2 {
		t.Fatalf("expected r2 promoted, got %v", promoted)
	}
}

func TestChannelCopiesBypassOwner(t *testing.T) {
	c := NewChannelCopies()
	ownerCh := "chan-1"
	ctx := "ctx-1"
	r := &Range{Offset: 0, Length: 10, OwnerChannel: ownerCh, LockedCtx: ctx}
	c.Insert(r)

	if c.Blocking(5, 1, false, ownerCh, ctx) != nil {
		t.Fatal("expected lock holder to bypass its own range")
	}
	if c.Blocking(5, 1, false, "other", "other") == nil {
		t.Fatal("expected a non-owner write to be blocked")
	}
}
