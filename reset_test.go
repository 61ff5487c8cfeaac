package bdev

import (
	"testing"

	"github.com/go-bdev/bdev/module/mock"
)

func newTestBdev(t *testing.T, numBlocks uint64) *Bdev {
	t.Helper()
	rt := NewRuntime()
	mod := mock.New(numBlocks, 512)
	b, err := rt.Register(mod, DefaultOpts("test0", numBlocks))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return b
}

func TestResetAbortsQueuedIo(t *testing.T) {
	b := newTestBdev(t, 1024)
	desc, err := b.OpenExt(OpenOpts{Write: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ch := desc.GetIoChannel("t1")

	io := &BdevIo{channel: ch, offsetBlocks: 0, numBlocks: 1}
	ch.enqueueNomem(io)

	var gotStatus Status
	io.cb = func(c Completion) { gotStatus = c.Status }

	if err := b.ResetBdev(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if gotStatus != StatusAborted {
		t.Fatalf("expected aborted, got %v", gotStatus)
	}
}

func TestResetClearsInProgressFlagAfterDrain(t *testing.T) {
	b := newTestBdev(t, 1024)
	desc, _ := b.OpenExt(OpenOpts{Write: true})
	ch := desc.GetIoChannel("t1")

	if err := b.ResetBdev(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if ch.isResetInProgress() {
		t.Fatalf("expected reset flag cleared after drain")
	}
}

func TestAbortIoMatchesByCtxAndTsc(t *testing.T) {
	b := newTestBdev(t, 1024)
	desc, _ := b.OpenExt(OpenOpts{Write: true})
	ch := desc.GetIoChannel("t1")

	ctx := "caller-1"
	io := &BdevIo{channel: ch, cbCtx: ctx, submitTsc: 42}
	ch.enqueueLocked(io)

	if !ch.AbortIo(ctx, 42) {
		t.Fatalf("expected abort to find matching I/O")
	}
	if ch.AbortIo(ctx, 42) {
		t.Fatalf("expected second abort for same I/O to find nothing")
	}
}
