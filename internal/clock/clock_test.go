package clock

import (
	"testing"
	"time"
)

func TestNowMonotonicallyIncreases(t *testing.T) {
	a := Now()
	time.Sleep(time.Millisecond)
	b := Now()
	if b <= a {
		t.Errorf("expected Now() to increase, got a=%d b=%d", a, b)
	}
}

func TestElapsed(t *testing.T) {
	start := Now()
	time.Sleep(2 * time.Millisecond)
	e := Elapsed(start)
	if e < int64(time.Millisecond) {
		t.Errorf("expected elapsed >= 1ms, got %d ns", e)
	}
}

func TestManualClock(t *testing.T) {
	m := NewManual(1000)
	if m.Now() != 1000 {
		t.Fatalf("expected 1000, got %d", m.Now())
	}
	m.Advance(time.Millisecond)
	if m.Now() != 1000+int64(time.Millisecond) {
		t.Fatalf("unexpected value after Advance: %d", m.Now())
	}
	m.Set(42)
	if m.Now() != 42 {
		t.Fatalf("expected 42 after Set, got %d", m.Now())
	}
}

func TestMonotonicClockSatisfiesInterface(t *testing.T) {
	var c Clock = Monotonic{}
	if c.Now() <= 0 {
		t.Fatal("expected positive Now()")
	}
}
