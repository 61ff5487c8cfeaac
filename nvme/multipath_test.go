package nvme

import (
	"context"
	"testing"

	"github.com/go-bdev/bdev/internal/clock"
	"github.com/go-bdev/bdev/nvme/transport/fake"
)

func newPath(t *testing.T, tr *fake.Transport, trid TransportId, ana AnaState) *IoPath {
	t.Helper()
	clk := clock.NewManual(0)
	c := NewCtrlr(tr, trid, clk)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	q, err := c.ConnectQpair(context.Background(), "ch")
	if err != nil {
		t.Fatalf("ConnectQpair: %v", err)
	}
	ns := NewNs(1, 16, 512)
	ns.SetAnaState(ana)
	return &IoPath{Ctrlr: c, Ns: ns, Qpair: q}
}

func newTwoPathChannel(t *testing.T, policy MpPolicy, selector MpSelector, rrMinIO int) (*NvmeBdevChannel, []*IoPath) {
	t.Helper()
	tr := fake.NewTransport()
	tridA := TransportId{Traddr: "a"}
	tridB := TransportId{Traddr: "b"}
	tr.Register(tridA, fake.NewTarget(16, 512))
	tr.Register(tridB, fake.NewTarget(16, 512))

	pa := newPath(t, tr, tridA, AnaOptimized)
	pb := newPath(t, tr, tridB, AnaOptimized)
	paths := []*IoPath{pa, pb}
	return NewNvmeBdevChannel(paths, policy, selector, rrMinIO), paths
}

func TestSelectPathActivePassiveStaysOnCurrent(t *testing.T) {
	ch, paths := newTwoPathChannel(t, MpActivePassive, SelectorRoundRobin, 1)
	first, err := ch.SelectPath(false)
	if err != nil {
		t.Fatalf("SelectPath: %v", err)
	}
	second, err := ch.SelectPath(false)
	if err != nil {
		t.Fatalf("SelectPath: %v", err)
	}
	if first != second {
		t.Fatalf("active_passive should keep returning the same path while it's available")
	}
	_ = paths
}

func TestSelectPathActivePassiveFailsOverWhenCurrentUnavailable(t *testing.T) {
	ch, paths := newTwoPathChannel(t, MpActivePassive, SelectorRoundRobin, 1)
	first, _ := ch.SelectPath(false)
	first.Ctrlr.disabled = true

	next, err := ch.SelectPath(false)
	if err != nil {
		t.Fatalf("SelectPath after failover: %v", err)
	}
	if next == first {
		t.Fatalf("expected failover to pick the other path")
	}
	if next != paths[0] && next != paths[1] {
		t.Fatalf("unexpected path returned")
	}
}

func TestSelectPathRoundRobinRotatesAfterMinIO(t *testing.T) {
	ch, _ := newTwoPathChannel(t, MpActiveActive, SelectorRoundRobin, 2)
	p1, _ := ch.SelectPath(false)
	p2, _ := ch.SelectPath(false)
	if p1 != p2 {
		t.Fatalf("expected path to be cached for rr_min_io consecutive I/Os")
	}
	p3, _ := ch.SelectPath(false)
	if p3 == p2 {
		t.Fatalf("expected round robin to rotate to the other path after rr_min_io I/Os")
	}
}

// busyQpair reports a fixed outstanding-request count over a real qpair.
type busyQpair struct {
	Qpair
	outstanding int
}

func (q busyQpair) OutstandingRequests() int { return q.outstanding }

func TestSelectPathQueueDepthPrefersLowerOutstanding(t *testing.T) {
	ch, paths := newTwoPathChannel(t, MpActiveActive, SelectorQueueDepth, 1)
	paths[0].Qpair = busyQpair{Qpair: paths[0].Qpair, outstanding: 3}

	picked, err := ch.SelectPath(false)
	if err != nil {
		t.Fatalf("SelectPath: %v", err)
	}
	if picked != paths[1] {
		t.Fatalf("expected the path with fewer outstanding requests")
	}
}

func TestSelectPathReturnsErrorWhenNoPathAvailable(t *testing.T) {
	ch, paths := newTwoPathChannel(t, MpActiveActive, SelectorRoundRobin, 1)
	for _, p := range paths {
		p.Ctrlr.disabled = true
	}
	if _, err := ch.SelectPath(false); err == nil {
		t.Fatalf("expected an error when every path is failed")
	}
}
