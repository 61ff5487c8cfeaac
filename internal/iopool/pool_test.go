package iopool

import "testing"

type fakeDesc struct {
	id    int
	reset bool
}

func (d *fakeDesc) Reset() { d.reset = true }

func newFakeDesc() *fakeDesc {
	return &fakeDesc{}
}

func TestPoolExhaustionReturnsFalse(t *testing.T) {
	p := NewPool(2, 2, newFakeDesc)
	ch := NewChannel(p)

	d1, ok := ch.Get()
	if !ok || d1 == nil {
		t.Fatal("expected first get to succeed")
	}
	d2, ok := ch.Get()
	if !ok || d2 == nil {
		t.Fatal("expected second get to succeed")
	}
	_, ok = ch.Get()
	if ok {
		t.Fatal("expected pool exhaustion to return false")
	}
}

func TestChannelCacheRoundTrip(t *testing.T) {
	p := NewPool(4, 2, newFakeDesc)
	ch := NewChannel(p)

	d, ok := ch.Get()
	if !ok {
		t.Fatal("expected get to succeed")
	}
	ch.Put(d)
	if ch.Cached() != 1 {
		t.Fatalf("expected 1 cached descriptor, got %d", ch.Cached())
	}
	if !d.reset {
		t.Fatal("expected descriptor to be reset on put")
	}
}

func TestChannelCacheOverflowReturnsToGlobal(t *testing.T) {
	p := NewPool(4, 1, newFakeDesc)
	ch := NewChannel(p)

	d1, _ := ch.Get()
	d2, _ := ch.Get()
	ch.Put(d1)
	if ch.Cached() != 1 {
		t.Fatalf("expected 1 cached, got %d", ch.Cached())
	}
	ch.Put(d2)
	if ch.Cached() != 1 {
		t.Fatalf("expected cache to stay capped at 1, got %d", ch.Cached())
	}
}

func TestWaiterStarvationAvoidance(t *testing.T) {
	p := NewPool(1, 1, newFakeDesc)
	ch := NewChannel(p)

	d, ok := ch.Get()
	if !ok {
		t.Fatal("expected first get to succeed")
	}
	ch.MarkWaiting()
	if ch.Waiters() != 1 {
		t.Fatalf("expected 1 waiter, got %d", ch.Waiters())
	}
	ch.Put(d)
	if ch.Waiters() != 0 {
		t.Fatalf("expected waiter drained after put, got %d", ch.Waiters())
	}
}

func TestBufferPoolRoundTrip(t *testing.T) {
	b := GetBuffer(4096)
	if len(b) != 4096 {
		t.Fatalf("expected len 4096, got %d", len(b))
	}
	PutBuffer(b)

	b2 := GetBuffer(100 * 1024)
	if len(b2) != 100*1024 {
		t.Fatalf("expected len 100KiB, got %d", len(b2))
	}
	PutBuffer(b2)
}
