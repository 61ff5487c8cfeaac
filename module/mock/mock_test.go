package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/go-bdev/bdev/module"
)

func TestMockTracksCallCounts(t *testing.T) {
	m := New(16, 512)
	ctx := context.Background()
	buf := make([]byte, 512)

	m.ReadAt(ctx, []module.IoVec{buf}, 0, 1)
	m.WriteAt(ctx, []module.IoVec{buf}, 0, 1)
	m.Flush(ctx)

	counts := m.CallCounts()
	if counts["read"] != 1 || counts["write"] != 1 || counts["flush"] != 1 {
		t.Fatalf("unexpected call counts: %+v", counts)
	}
}

func TestMockInjectedFailure(t *testing.T) {
	m := New(16, 512)
	wantErr := errors.New("injected read failure")
	m.ReadErr = wantErr

	err := m.ReadAt(context.Background(), []module.IoVec{make([]byte, 512)}, 0, 1)
	if err != wantErr {
		t.Fatalf("expected injected error, got %v", err)
	}
}

func TestMockCloseSetsFlag(t *testing.T) {
	m := New(16, 512)
	if m.IsClosed() {
		t.Fatal("expected not closed initially")
	}
	m.Close()
	if !m.IsClosed() {
		t.Fatal("expected closed after Close()")
	}
}

func TestMockResetCounters(t *testing.T) {
	m := New(16, 512)
	ctx := context.Background()
	m.Flush(ctx)
	m.ResetCounters()
	if m.CallCounts()["flush"] != 0 {
		t.Fatal("expected counters cleared after ResetCounters")
	}
}
