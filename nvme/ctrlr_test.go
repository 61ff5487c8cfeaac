package nvme

import (
	"context"
	"testing"

	"github.com/go-bdev/bdev/internal/clock"
	"github.com/go-bdev/bdev/nvme/transport/fake"
)

func newConnectedCtrlr(t *testing.T, tr *fake.Transport, trid TransportId, clk clock.Clock) *Ctrlr {
	t.Helper()
	c := NewCtrlr(tr, trid, clk)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c
}

func TestCtrlrResetSucceedsAndRecreatesQpairs(t *testing.T) {
	tr := fake.NewTransport()
	trid := TransportId{Traddr: "10.0.0.1"}
	tr.Register(trid, fake.NewTarget(1024, 512))

	clk := clock.NewManual(0)
	c := newConnectedCtrlr(t, tr, trid, clk)

	key := "chan0"
	if _, err := c.ConnectQpair(context.Background(), key); err != nil {
		t.Fatalf("ConnectQpair: %v", err)
	}

	outcome, err := c.ResetCtrlr(context.Background())
	if err != nil {
		t.Fatalf("ResetCtrlr: %v", err)
	}
	if outcome != OutcomeNone {
		t.Fatalf("expected OutcomeNone on a clean reset, got %v", outcome)
	}
	if c.IsFailed() {
		t.Fatalf("controller should not be failed after a successful reset")
	}
}

func TestCtrlrResetFailsOverToAlternateTrid(t *testing.T) {
	tr := fake.NewTransport()
	primary := TransportId{Traddr: "10.0.0.1"}
	secondary := TransportId{Traddr: "10.0.0.2"}
	primaryTarget := fake.NewTarget(16, 512)
	tr.Register(primary, primaryTarget)
	tr.Register(secondary, fake.NewTarget(16, 512))

	clk := clock.NewManual(0)
	c := newConnectedCtrlr(t, tr, primary, clk)
	c.trids.Add(secondary)

	primaryTarget.FailConnect = errString("fake: link down")

	outcome, err := c.ResetCtrlr(context.Background())
	if err != nil {
		t.Fatalf("expected reset to succeed via failover, got err=%v outcome=%v", err, outcome)
	}
	if c.trids.Active().Trid != secondary {
		t.Fatalf("expected active trid to become secondary after failover, got %+v", c.trids.Active().Trid)
	}
}

func TestCtrlrResetDisablesAfterExhaustingTrids(t *testing.T) {
	tr := fake.NewTransport()
	primary := TransportId{Traddr: "10.0.0.1"}
	pt := fake.NewTarget(16, 512)
	tr.Register(primary, pt)

	clk := clock.NewManual(0)
	c := newConnectedCtrlr(t, tr, primary, clk)

	pt.FailConnect = errString("fake: link down")

	_, err := c.ResetCtrlr(context.Background())
	if err == nil {
		t.Fatalf("expected reset to fail with no reconnect_delay configured and no alternate trid")
	}
	if !c.IsFailed() {
		t.Fatalf("expected controller to be marked failed/disabled")
	}
}

func TestCtrlrSetTimeoutsRejectsInvalidCombination(t *testing.T) {
	c := NewCtrlr(fake.NewTransport(), TransportId{}, clock.NewManual(0))
	if err := c.SetTimeouts(10, 5, 0); err == nil {
		t.Fatalf("expected error when reconnect_delay is 0 but other timeouts are set")
	}
	if err := c.SetTimeouts(5, 10, 1); err == nil {
		t.Fatalf("expected error when fast_io_fail exceeds ctrlr_loss")
	}
	if err := c.SetTimeouts(10, 5, 1); err != nil {
		t.Fatalf("expected a valid ordering to be accepted, got %v", err)
	}
}
