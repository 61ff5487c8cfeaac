package bdev

import (
	"context"
	"testing"

	"github.com/go-bdev/bdev/internal/clock"
	"github.com/go-bdev/bdev/module/mock"
)

func TestSubmitReadWriteRoundTrip(t *testing.T) {
	b := newTestBdev(t, 1024)
	desc, err := b.OpenExt(OpenOpts{Write: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ch := desc.GetIoChannel("t1")

	data := []byte("hello world")
	var writeDone, readDone bool
	ch.Submit(context.Background(), desc, IoWrite, 0, 1, [][]byte{data}, nil, func(c Completion) {
		writeDone = c.Status == StatusSuccess
	})
	if !writeDone {
		t.Fatalf("expected write to complete synchronously with success")
	}

	readBuf := make([]byte, len(data))
	ch.Submit(context.Background(), desc, IoRead, 0, 1, [][]byte{readBuf}, nil, func(c Completion) {
		readDone = c.Status == StatusSuccess
	})
	if !readDone {
		t.Fatalf("expected read to complete successfully")
	}
	if string(readBuf) != string(data) {
		t.Fatalf("expected round-trip data %q, got %q", data, readBuf)
	}
}

func TestSubmitDuringResetAborts(t *testing.T) {
	b := newTestBdev(t, 1024)
	desc, _ := b.OpenExt(OpenOpts{Write: true})
	ch := desc.GetIoChannel("t1")
	ch.setResetInProgress(true)

	var status Status
	ch.Submit(context.Background(), desc, IoRead, 0, 1, [][]byte{make([]byte, 512)}, nil, func(c Completion) {
		status = c.Status
	})
	if status != StatusAborted {
		t.Fatalf("expected aborted status during reset, got %v", status)
	}
}

func TestSubmitBlockedByLockedRangeQueues(t *testing.T) {
	b := newTestBdev(t, 1024)
	desc, _ := b.OpenExt(OpenOpts{Write: true})
	ch := desc.GetIoChannel("t1")

	_, err := b.LockLbaRange(ch, 0, 10, false, "holder")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	called := false
	io := ch.Submit(context.Background(), desc, IoWrite, 2, 1, [][]byte{make([]byte, 512)}, "other", func(Completion) {
		called = true
	})
	if called {
		t.Fatalf("expected write blocked by lock to not complete yet")
	}
	if io.status != StatusPending {
		t.Fatalf("expected pending status, got %v", io.status)
	}
}

func TestSubmitSplitsOversizedWrite(t *testing.T) {
	b := newTestBdev(t, 1024)
	opts := DefaultOpts("split0", 1024)
	opts.MaxRWSize = 2
	mod := mock.New(1024, 512)
	rt := NewRuntime()
	bd, err := rt.Register(mod, opts)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_ = b

	desc, _ := bd.OpenExt(OpenOpts{Write: true})
	ch := desc.GetIoChannel("t1")

	iov := make([]byte, 5*512)
	var done bool
	ch.Submit(context.Background(), desc, IoWrite, 0, 5, [][]byte{iov}, nil, func(c Completion) {
		done = c.Status == StatusSuccess
	})
	if !done {
		t.Fatalf("expected split write to eventually complete successfully")
	}
	counts := mod.CallCounts()
	if counts["write"] < 3 {
		t.Fatalf("expected at least 3 child writes for a 5-block I/O capped at 2, got %d", counts["write"])
	}
}

func TestSubmitGatedByQos(t *testing.T) {
	b := newTestBdev(t, 1024)
	clk := clock.NewManual(0)
	b.EnableQos(QosOpts{RWIOPSLimit: 1000}, clk)

	desc, _ := b.OpenExt(OpenOpts{Write: true})
	ch := desc.GetIoChannel("t1")

	var completions int
	for i := 0; i < 3; i++ {
		ch.Submit(context.Background(), desc, IoWrite, uint64(i), 1, [][]byte{make([]byte, 512)}, nil, func(c Completion) {
			if c.Status == StatusSuccess {
				completions++
			}
		})
	}
	if completions == 0 {
		t.Fatalf("expected at least the first admitted write to complete immediately")
	}
}
