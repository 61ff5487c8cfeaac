package nvme

import (
	"context"
	"sync"
	"time"

	"github.com/go-bdev/bdev/internal/clock"
)

// CtrlrState is one state of the controller reset state machine (spec
// §4.5.3).
type CtrlrState int

const (
	StateIdle CtrlrState = iota
	StateDestroyingQpairs
	StateDisconnectingAdmin
	StateReconnecting
	StateCreatingQpairs
	StateDisabled
	StateReconnectDelayed
	StateDestructing
)

// ResetOutcome is the action reset completion computes, per spec §4.5.3.
type ResetOutcome int

const (
	OutcomeNone ResetOutcome = iota
	OutcomeCompletePendingDestruct
	OutcomeDestruct
	OutcomeDelayedReconnect
	OutcomeFailover
)

// Ctrlr is an NVMe controller: its trid list, transport connection, and the
// reset/failover/timeout state machine of spec §4.5.3-§4.5.5.
type Ctrlr struct {
	mu sync.Mutex

	transport Transport
	trids     *TridList
	clock     clock.Clock

	adminQ AdminQueue
	qpairs map[any]Qpair

	state           CtrlrState
	resetting       bool
	dontRetry       bool
	disabled        bool
	destruct        bool
	failoverPending bool

	resetStartTsc int64

	ctrlrLossTimeoutSec  float64
	fastIoFailTimeoutSec float64
	reconnectDelaySec    float64
	fastIoFailTimedOut   bool

	ctrlrData ControllerData
}

// NewCtrlr creates a controller bound to transport over the given primary
// trid, using clk for all timing decisions.
func NewCtrlr(transport Transport, primary TransportId, clk clock.Clock) *Ctrlr {
	return &Ctrlr{
		transport: transport,
		trids:     NewTridList(primary),
		clock:     clk,
		qpairs:    make(map[any]Qpair),
	}
}

// SetTimeouts configures the three timeout knobs, enforcing the validity
// rule of spec §4.5.3: reconnect_delay==0 iff both loss and fast-io-fail
// timeouts are 0, and reconnect_delay <= fast_io_fail <= ctrlr_loss when all
// three are nonzero.
func (c *Ctrlr) SetTimeouts(ctrlrLossSec, fastIoFailSec, reconnectDelaySec float64) error {
	if reconnectDelaySec == 0 && (ctrlrLossSec != 0 || fastIoFailSec != 0) {
		return errInvalidTimeouts
	}
	if reconnectDelaySec != 0 && ctrlrLossSec == 0 && fastIoFailSec == 0 {
		return errInvalidTimeouts
	}
	if ctrlrLossSec > 0 && fastIoFailSec > 0 && reconnectDelaySec > 0 {
		if !(reconnectDelaySec <= fastIoFailSec && fastIoFailSec <= ctrlrLossSec) {
			return errInvalidTimeouts
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctrlrLossTimeoutSec = ctrlrLossSec
	c.fastIoFailTimeoutSec = fastIoFailSec
	c.reconnectDelaySec = reconnectDelaySec
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }

const (
	errInvalidTimeouts = errString("nvme: invalid reconnect/fast-io-fail/ctrlr-loss timeout combination")
	errBusy            = errString("nvme: controller reset already in progress")
	errAlready         = errString("nvme: controller is disabled")
	errNoPath          = errString("nvme: controller is being destructed")
)

// Connect performs the initial admin-queue connection.
func (c *Ctrlr) Connect(ctx context.Context) error {
	c.mu.Lock()
	trid := c.trids.Active().Trid
	c.mu.Unlock()

	aq, err := c.transport.ConnectAdmin(ctx, trid)
	if err != nil {
		return err
	}
	data, err := aq.Identify(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.adminQ = aq
	c.ctrlrData = data
	c.state = StateIdle
	c.mu.Unlock()
	return nil
}

// ControllerData returns the cached Identify Controller data.
func (c *Ctrlr) ControllerData() ControllerData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrlrData
}

// ConnectQpair opens a new qpair for key (typically a *NvmeBdevChannel),
// used by the multipath channel when it is created.
func (c *Ctrlr) ConnectQpair(ctx context.Context, key any) (Qpair, error) {
	c.mu.Lock()
	trid := c.trids.Active().Trid
	c.mu.Unlock()

	q, err := c.transport.ConnectQpair(ctx, trid)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.qpairs[key] = q
	c.mu.Unlock()
	return q, nil
}

// IsFailed reports whether this controller should be treated as
// permanently failed: disabled, destructing, or past fast_io_fail_timeout.
func (c *Ctrlr) IsFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled || c.destruct || c.fastIoFailTimedOut
}

// ResetCtrlr runs the reset state machine of spec §4.5.3 to completion
// synchronously: tear down every qpair, disconnect and reconnect the admin
// queue, walk the trid list on failure, and recreate qpairs on success.
func (c *Ctrlr) ResetCtrlr(ctx context.Context) (ResetOutcome, error) {
	c.mu.Lock()
	if c.destruct {
		c.mu.Unlock()
		return OutcomeNone, errNoPath
	}
	if c.resetting {
		c.mu.Unlock()
		return OutcomeNone, errBusy
	}
	if c.disabled {
		c.mu.Unlock()
		return OutcomeNone, errAlready
	}
	c.resetting = true
	c.dontRetry = true
	if c.resetStartTsc == 0 {
		c.resetStartTsc = c.clock.Now()
	}
	c.state = StateDestroyingQpairs
	keys := make([]any, 0, len(c.qpairs))
	for k := range c.qpairs {
		keys = append(keys, k)
	}
	trid := c.trids.Active().Trid
	c.mu.Unlock()

	for _, k := range keys {
		c.transport.Disconnect(trid)
		c.mu.Lock()
		delete(c.qpairs, k)
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.state = StateDisconnectingAdmin
	c.mu.Unlock()
	c.transport.Disconnect(trid)

	c.mu.Lock()
	c.state = StateReconnecting
	c.mu.Unlock()

	if err := c.Connect(ctx); err != nil {
		return c.onReconnectFailure(ctx)
	}

	c.mu.Lock()
	c.state = StateCreatingQpairs
	for _, k := range keys {
		c.mu.Unlock()
		if _, err := c.ConnectQpair(ctx, k); err != nil {
			return c.onReconnectFailure(ctx)
		}
		c.mu.Lock()
	}
	c.resetting = false
	c.dontRetry = false
	c.resetStartTsc = 0
	c.state = StateIdle
	pending := c.failoverPending
	destruct := c.destruct
	c.failoverPending = false
	c.mu.Unlock()

	switch {
	case destruct:
		return OutcomeDestruct, nil
	case pending:
		return OutcomeFailover, nil
	default:
		return OutcomeNone, nil
	}
}

// onReconnectFailure implements spec §4.5.3 step 6: walk the trid list for
// an alternate that is ready (or whose reconnect delay has elapsed);
// otherwise schedule a delayed reconnect or fail outright.
func (c *Ctrlr) onReconnectFailure(ctx context.Context) (ResetOutcome, error) {
	c.mu.Lock()
	now := c.clock.Now()
	if c.trids.Len() > 1 {
		next := c.trids.Failover(false, now)
		c.mu.Unlock()
		if next != nil && reconnectDelayElapsed(next, time.Duration(c.reconnectDelaySec*float64(time.Second)), now) {
			return c.ResetCtrlr(ctx)
		}
		return c.scheduleOrFail()
	}
	c.mu.Unlock()
	return c.scheduleOrFail()
}

func (c *Ctrlr) scheduleOrFail() (ResetOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetting = false
	if c.reconnectDelaySec > 0 {
		c.state = StateReconnectDelayed
		return OutcomeDelayedReconnect, nil
	}
	c.state = StateDisabled
	c.disabled = true
	return OutcomeNone, errAlready
}

// CheckTimeouts evaluates ctrlr_loss_timeout and fast_io_fail_timeout
// against elapsed reset time (spec §4.5.3), to be called from a poller.
func (c *Ctrlr) CheckTimeouts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resetStartTsc == 0 {
		return
	}
	elapsed := time.Duration(c.clock.Now() - c.resetStartTsc)
	if c.fastIoFailTimeoutSec > 0 && !c.fastIoFailTimedOut &&
		elapsed >= time.Duration(c.fastIoFailTimeoutSec*float64(time.Second)) {
		c.fastIoFailTimedOut = true
	}
	if c.ctrlrLossTimeoutSec > 0 &&
		elapsed >= time.Duration(c.ctrlrLossTimeoutSec*float64(time.Second)) {
		c.disabled = true
		c.resetting = false
	}
}

// RequestFailover marks a failover as pending; if a reset is in progress it
// is deferred to reset completion, per spec §4.5.3's outcome computation.
func (c *Ctrlr) RequestFailover(remove bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trids.Failover(remove, c.clock.Now())
	if c.resetting {
		c.failoverPending = true
	}
}

// Destruct marks the controller for teardown; if a reset is in progress,
// that reset's successful completion reports OutcomeDestruct
// (OutcomeCompletePendingDestruct is never returned).
func (c *Ctrlr) Destruct() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destruct = true
	if !c.resetting {
		c.state = StateDestructing
	}
}
