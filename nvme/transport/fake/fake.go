// Package fake provides an in-memory nvme.Transport for tests: no real
// NVMe-oF/PCIe connection, just a byte buffer per target plus knobs to
// inject disconnects and per-command failures, the way the bdev core's own
// module/mock fakes a block device.
package fake

import (
	"context"
	"sync"

	"github.com/go-bdev/bdev/nvme"
)

// Target is one fake NVMe-oF endpoint: a backing buffer plus failure knobs.
type Target struct {
	mu        sync.Mutex
	data      []byte
	blockLen  uint32
	connected bool
	ana       []nvme.NamespaceAna
	ctrlData  nvme.ControllerData

	FailConnect error
	FailAllIO   error
	qpairs      []*qpair
}

// NewTarget creates a fake target with numBlocks*blockLen of backing
// storage, initially reporting one optimized namespace.
func NewTarget(numBlocks uint64, blockLen uint32) *Target {
	return &Target{
		data:     make([]byte, numBlocks*uint64(blockLen)),
		blockLen: blockLen,
		ana:      []nvme.NamespaceAna{{NSID: 1, State: nvme.AnaOptimized}},
		ctrlData: nvme.ControllerData{MDTS: 1 << 20, Crdt: [3]uint16{0, 0, 0}},
	}
}

// SetAna overrides the ANA log page this target reports.
func (tg *Target) SetAna(entries []nvme.NamespaceAna) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.ana = entries
}

// Disconnect forcibly marks every qpair on this target as disconnected, the
// fake equivalent of a transport-level link drop used to exercise §4.5.3's
// reset-on-disconnect path.
func (tg *Target) Disconnect() {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.connected = false
	for _, q := range tg.qpairs {
		q.connected = false
	}
}

// Transport implements nvme.Transport over a fixed set of named targets.
type Transport struct {
	mu      sync.Mutex
	targets map[nvme.TransportId]*Target
}

// NewTransport creates a fake transport with no targets registered.
func NewTransport() *Transport {
	return &Transport{targets: make(map[nvme.TransportId]*Target)}
}

// Register adds (or replaces) the target backing trid.
func (t *Transport) Register(trid nvme.TransportId, tg *Target) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets[trid] = tg
}

func (t *Transport) lookup(trid nvme.TransportId) (*Target, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tg, ok := t.targets[trid]
	return tg, ok
}

// ConnectAdmin implements nvme.Transport.
func (t *Transport) ConnectAdmin(ctx context.Context, trid nvme.TransportId) (nvme.AdminQueue, error) {
	tg, ok := t.lookup(trid)
	if !ok {
		return nil, errNoSuchTarget
	}
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if tg.FailConnect != nil {
		return nil, tg.FailConnect
	}
	tg.connected = true
	return &adminQueue{target: tg}, nil
}

// ConnectQpair implements nvme.Transport.
func (t *Transport) ConnectQpair(ctx context.Context, trid nvme.TransportId) (nvme.Qpair, error) {
	tg, ok := t.lookup(trid)
	if !ok {
		return nil, errNoSuchTarget
	}
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if tg.FailConnect != nil {
		return nil, tg.FailConnect
	}
	q := &qpair{target: tg, connected: true}
	tg.qpairs = append(tg.qpairs, q)
	return q, nil
}

// Disconnect implements nvme.Transport.
func (t *Transport) Disconnect(trid nvme.TransportId) error {
	tg, ok := t.lookup(trid)
	if !ok {
		return errNoSuchTarget
	}
	tg.Disconnect()
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }

const errNoSuchTarget = errString("fake: no such target registered")

type adminQueue struct {
	target *Target
}

func (a *adminQueue) Identify(ctx context.Context) (nvme.ControllerData, error) {
	a.target.mu.Lock()
	defer a.target.mu.Unlock()
	return a.target.ctrlData, nil
}

func (a *adminQueue) GetAnaLogPage(ctx context.Context) ([]nvme.NamespaceAna, error) {
	a.target.mu.Lock()
	defer a.target.mu.Unlock()
	out := make([]nvme.NamespaceAna, len(a.target.ana))
	copy(out, a.target.ana)
	return out, nil
}

func (a *adminQueue) Abort(ctx context.Context, cid uint32) error {
	return nil
}

type qpair struct {
	mu          sync.Mutex
	target      *Target
	connected   bool
	outstanding int
}

func (q *qpair) Connected() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.connected
}

func (q *qpair) OutstandingRequests() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}

func (q *qpair) SubmitIO(ctx context.Context, cmd nvme.Command) nvme.CompletionStatus {
	q.mu.Lock()
	if !q.connected {
		q.mu.Unlock()
		return nvme.CompletionStatus{Success: false, PathError: true}
	}
	q.outstanding++
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.outstanding--
		q.mu.Unlock()
	}()

	tg := q.target
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if tg.FailAllIO != nil {
		return nvme.CompletionStatus{Success: false, Err: tg.FailAllIO}
	}

	off := cmd.OffsetBlocks * uint64(tg.blockLen)
	switch cmd.Opcode {
	case nvme.OpRead:
		for _, v := range cmd.Data {
			n := copy(v, tg.data[off:])
			off += uint64(n)
		}
	case nvme.OpWrite, nvme.OpFusedCompareWrite:
		for _, v := range cmd.Data {
			n := copy(tg.data[off:], v)
			off += uint64(n)
		}
	case nvme.OpDsmDeallocate:
		for _, r := range cmd.DsmRanges {
			start := r.OffsetBlocks * uint64(tg.blockLen)
			end := start + uint64(r.NumBlocks)*uint64(tg.blockLen)
			zeroRange(tg.data, start, end)
		}
	case nvme.OpWriteZeroes:
		end := off + cmd.NumBlocks*uint64(tg.blockLen)
		zeroRange(tg.data, off, end)
	case nvme.OpCompare:
		for _, v := range cmd.Data {
			if !bytesEqual(tg.data[off:off+uint64(len(v))], v) {
				return nvme.CompletionStatus{Success: false, Dnr: true}
			}
			off += uint64(len(v))
		}
	}
	return nvme.CompletionStatus{Success: true}
}

func zeroRange(data []byte, start, end uint64) {
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	for i := start; i < end; i++ {
		data[i] = 0
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
