// Package bdev implements a user-space block-device virtualization core:
// a generic bdev runtime (I/O channels, descriptor pool, submit/split
// pipeline, LBA-range locking, module claims, reset/abort, and statistics)
// plus an NVMe multipath bdev module built on top of it.
package bdev

import (
	"context"
	"sync"

	"github.com/go-bdev/bdev/internal/claim"
	"github.com/go-bdev/bdev/internal/clock"
	"github.com/go-bdev/bdev/internal/constants"
	"github.com/go-bdev/bdev/internal/iopool"
	"github.com/go-bdev/bdev/internal/lock"
	"github.com/go-bdev/bdev/internal/logging"
	"github.com/go-bdev/bdev/internal/qos"
	"github.com/go-bdev/bdev/module"
)

// Bdev is a logical block device: a registered module plus the runtime
// state the bdev core layers on top of every module (spec §3 Bdev).
type Bdev struct {
	mu   sync.Mutex
	opts Opts

	module   module.Module
	claims   *claim.Manager
	ranges   *lock.Manager
	stats    *Stats
	observer Observer
	logger   *logging.Logger
	ioPool   *iopool.Pool[*BdevIo]

	qos       *qos.Qos
	qosPoller *qos.Poller
	qosOwner  *BdevChannel

	descs    map[*BdevDesc]struct{}
	channels map[*BdevChannel]struct{}

	examining bool
	destroyed bool
}

// Name returns the bdev's registered name.
func (b *Bdev) Name() string { return b.opts.Name }

// Opts returns a copy of the bdev's static geometry/limits.
func (b *Bdev) Opts() Opts { return b.opts }

// Stats returns the bdev's statistics counters.
func (b *Bdev) Stats() *Stats { return b.stats }

// SetObserver installs an additional Observer (e.g. a Prometheus collector
// from the metrics package) that every completed I/O is also reported to,
// alongside the built-in Stats counters.
func (b *Bdev) SetObserver(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o == nil {
		o = NoOpObserver{}
	}
	b.observer = o
}

// Runtime is the process-wide bdev registry (spec §3/§4.4: the
// process-wide bdev-manager spinlock that guards bdev registration).
type Runtime struct {
	mu    sync.Mutex
	bdevs map[string]*Bdev
}

// NewRuntime creates an empty bdev registry. Most programs need only one;
// tests create fresh ones for isolation.
func NewRuntime() *Runtime {
	return &Runtime{bdevs: make(map[string]*Bdev)}
}

var defaultRuntime = NewRuntime()

// Default returns the process-wide default Runtime.
func Default() *Runtime { return defaultRuntime }

// Register creates a Bdev wrapping mod with the given opts and adds it to
// the registry under opts.Name. It fails if a bdev of that name already
// exists.
func (rt *Runtime) Register(mod module.Module, opts Opts) (*Bdev, error) {
	if opts.Name == "" {
		return nil, NewError("register", ErrCodeInvalidParams, "bdev name must not be empty")
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, exists := rt.bdevs[opts.Name]; exists {
		return nil, NewBdevError("register", opts.Name, ErrCodeExists, "a bdev with this name is already registered")
	}

	g := mod.Geometry()
	if opts.BlockLen == 0 {
		opts.BlockLen = g.BlockLen
	}
	if opts.BlockCount == 0 {
		opts.BlockCount = g.NumBlocks
	}

	b := &Bdev{
		opts:     opts,
		module:   mod,
		claims:   claim.NewManager(),
		ranges:   lock.NewManager(),
		stats:    NewStats(),
		observer: NoOpObserver{},
		logger:   logging.Default().WithBdev(opts.Name),
		ioPool:   iopool.NewPool[*BdevIo](constants.DefaultIOPoolSize, constants.DefaultIOCacheSize, func() *BdevIo { return &BdevIo{} }),
		descs:    make(map[*BdevDesc]struct{}),
		channels: make(map[*BdevChannel]struct{}),
	}
	rt.bdevs[opts.Name] = b
	return b, nil
}

// Get looks up a registered bdev by name (or alias).
func (rt *Runtime) Get(name string) (*Bdev, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	b, ok := rt.bdevs[name]
	if ok {
		return b, true
	}
	for _, b := range rt.bdevs {
		for _, alias := range b.opts.Aliases {
			if alias == name {
				return b, true
			}
		}
	}
	return nil, false
}

// Unregister removes a bdev from the registry. It fails unless the bdev
// has zero open descriptors, matching spec §3's lifecycle rule ("destroyed
// only after the last open descriptor is closed and no I/O outstanding").
func (rt *Runtime) Unregister(name string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	b, ok := rt.bdevs[name]
	if !ok {
		return NewBdevError("unregister", name, ErrCodeNotFound, "no such bdev")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.descs) > 0 {
		return NewBdevError("unregister", name, ErrCodeBusy, "bdev still has open descriptors")
	}
	b.destroyed = true
	if err := b.module.Close(); err != nil {
		return WrapError("unregister", err)
	}
	delete(rt.bdevs, name)
	return nil
}

// EnableQos turns on the four-bucket limiter for this bdev. The first
// channel opened after this call becomes the QoS poller's owner thread,
// per spec §4.2 ("The poller thread is the thread that first opened a
// channel to the bdev after QoS was enabled").
func (b *Bdev) EnableQos(opts QosOpts, clk clock.Clock) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := qos.NewQos(opts.RWIOPSLimit, opts.RWBPSLimitMiB, opts.RBPSLimitMiB, opts.WBPSLimitMiB)
	b.qos = q
	b.qosPoller = qos.NewPoller(q, clk)
	b.qosOwner = nil
}

// DisableQos swaps QoS off. Existing channels stop being gated; new
// channels never adopt QoS state after this point, per spec §4.2's
// disable path.
func (b *Bdev) DisableQos() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.qos = nil
	b.qosPoller = nil
	b.qosOwner = nil
}

// OpenExt opens a descriptor on the bdev, optionally taking a claim. It
// implements spec §4.4.5's claim rules by delegating to internal/claim.
func (b *Bdev) OpenExt(opts OpenOpts) (*BdevDesc, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, NewBdevError("open", b.opts.Name, ErrCodeNotFound, "bdev is being destroyed")
	}

	desc := &BdevDesc{
		bdev:      b,
		write:     opts.Write,
		claimType: opts.ClaimType,
		onEvent:   opts.OnEvent,
		channels:  make(map[string]*BdevChannel),
	}

	switch opts.ClaimType {
	case ClaimNone:
	case ClaimExclWrite:
		if err := b.claims.ClaimExclWrite(); err != nil {
			return nil, WrapError("open", err)
		}
	default:
		ct := toInternalClaimType(opts.ClaimType)
		rec, err := b.claims.ClaimV2(desc, ct, opts.Write, opts.SharedKey)
		if err != nil {
			return nil, WrapError("open", err)
		}
		desc.claimRecord = rec
	}

	b.descs[desc] = struct{}{}
	return desc, nil
}

func toInternalClaimType(t ClaimType) claim.Type {
	switch t {
	case ClaimReadManyWriteOne:
		return claim.ReadManyWriteOne
	case ClaimReadManyWriteNone:
		return claim.ReadManyWriteNone
	case ClaimReadManyWriteShared:
		return claim.ReadManyWriteShared
	default:
		return claim.None
	}
}

// BdevDesc is an open handle on a Bdev (spec §3 BdevDesc).
type BdevDesc struct {
	bdev        *Bdev
	write       bool
	claimType   ClaimType
	claimRecord *claim.Record
	onEvent     func(event string)

	mu       sync.Mutex
	channels map[string]*BdevChannel
}

// Bdev returns the bdev this descriptor was opened against.
func (d *BdevDesc) Bdev() *Bdev { return d.bdev }

// Writable reports whether this descriptor was opened for writing.
func (d *BdevDesc) Writable() bool { return d.write }

// GetIoChannel returns the BdevChannel for the given thread identity,
// creating one on first use. "Thread" here is whatever identity the
// caller uses to key its own single-goroutine execution context (e.g. a
// worker-pool slot name); the bdev core never inspects it beyond equality.
func (d *BdevDesc) GetIoChannel(thread string) *BdevChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.channels[thread]; ok {
		ch.refs++
		return ch
	}
	ch := newBdevChannel(d.bdev, thread)
	d.channels[thread] = ch

	d.bdev.mu.Lock()
	d.bdev.channels[ch] = struct{}{}
	if d.bdev.qos != nil && d.bdev.qosOwner == nil {
		d.bdev.qosOwner = ch
	}
	d.bdev.mu.Unlock()
	return ch
}

// PutIoChannel releases a reference to a channel obtained via
// GetIoChannel, destroying it once the last reference is dropped (spec §3
// BdevChannel lifecycle).
func (d *BdevDesc) PutIoChannel(ch *BdevChannel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch.refs--
	if ch.refs > 0 {
		return
	}
	delete(d.channels, ch.thread)
	d.bdev.mu.Lock()
	delete(d.bdev.channels, ch)
	d.bdev.mu.Unlock()
}

// Close releases the descriptor's claim (if any) and removes it from the
// owning bdev. Per spec §3, actual destruction is implicitly deferred
// until refs==0; since Go callers hold *BdevDesc directly rather than a
// refcounted handle, Close here is the final release.
func (d *BdevDesc) Close() error {
	b := d.bdev
	b.mu.Lock()
	defer b.mu.Unlock()
	switch d.claimType {
	case ClaimNone:
	case ClaimExclWrite:
		b.claims.Release(d)
	default:
		b.claims.Release(d)
	}
	delete(b.descs, d)
	return nil
}

// contextOrBackground returns ctx, defaulting to context.Background() when
// nil, matching the teacher's CreateAndServe nil-context handling.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
