package bdev

import "testing"

func TestLockLbaRangeGrantsImmediatelyWhenFree(t *testing.T) {
	b := newTestBdev(t, 1024)
	desc, _ := b.OpenExt(OpenOpts{Write: true})
	ch := desc.GetIoChannel("t1")

	r, err := b.LockLbaRange(ch, 0, 10, false, "ctx-1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if r.Offset != 0 || r.Length != 10 {
		t.Fatalf("unexpected range: %+v", r)
	}
}

func TestUnlockLbaRangeDrainsLockedQueue(t *testing.T) {
	b := newTestBdev(t, 1024)
	desc, _ := b.OpenExt(OpenOpts{Write: true})
	ch := desc.GetIoChannel("t1")

	r, err := b.LockLbaRange(ch, 0, 10, false, "ctx-1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	blocked := &BdevIo{channel: ch, offsetBlocks: 5, numBlocks: 1, typ: IoWrite}
	var completed bool
	blocked.cb = func(Completion) { completed = true }
	ch.enqueueLocked(blocked)

	b.UnlockLbaRange(r)

	if !completed {
		t.Fatalf("expected previously-locked I/O to be resubmitted after unlock")
	}
}
