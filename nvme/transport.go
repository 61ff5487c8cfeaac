// Package nvme implements the NVMe multipath bdev module built on top of
// the generic bdev core: path selection and io-channel state (component F),
// controller connect/reset/failover lifecycle (component G), and the
// generic-operation-to-NVMe-command translation layer (component H).
//
// Device drivers and any real NVMe-oF/PCIe transport are out of scope; the
// Transport interface below is the external collaborator a real transport
// would implement, matching the module boundary the bdev core itself uses.
package nvme

import "context"

// AnaState mirrors the per-namespace ANA states NVMe reports (spec §4.5.1).
type AnaState int

const (
	AnaOptimized AnaState = iota
	AnaNonOptimized
	AnaInaccessible
	AnaChange
	AnaUpdating
)

// CompletionStatus is the outcome of one NVMe command, enough detail for
// the retry/failover logic of spec §4.5.2 to act on.
type CompletionStatus struct {
	Success           bool
	Dnr               bool // "do not retry" flag from the NVMe status field
	AbortedByRequest  bool
	PathError         bool
	AbortedSQDeletion bool
	AnaError          bool
	Crd               int // command-retry-delay index into cdata.crdt
	Err               error
}

// Qpair is one connected I/O queue pair on a controller.
type Qpair interface {
	// SubmitIO issues one NVMe I/O command and blocks until it completes
	// (the fake transport and any real one built on callbacks would adapt
	// a callback-based SDK into this synchronous shape at the boundary).
	SubmitIO(ctx context.Context, cmd Command) CompletionStatus
	OutstandingRequests() int
	Connected() bool
}

// AdminQueue issues admin commands (identify, ANA log page, abort, reset)
// against a controller.
type AdminQueue interface {
	Identify(ctx context.Context) (ControllerData, error)
	GetAnaLogPage(ctx context.Context) ([]NamespaceAna, error)
	Abort(ctx context.Context, cid uint32) error
}

// Transport connects to and disconnects from one NVMe target, producing
// qpairs and an admin queue. A real implementation would wrap NVMe-oF TCP/
// RDMA or PCIe; the fake transport in nvme/transport/fake backs it with an
// in-memory buffer for tests.
type Transport interface {
	ConnectAdmin(ctx context.Context, trid TransportId) (AdminQueue, error)
	ConnectQpair(ctx context.Context, trid TransportId) (Qpair, error)
	Disconnect(trid TransportId) error
}

// TransportId identifies one NVMe-oF target (spec's NvmePathId/trid).
type TransportId struct {
	Trtype  string
	Traddr  string
	Trsvcid string
	Subnqn  string
}

// Command is a generic NVMe I/O command shape (opcode plus the fields the
// translation layer in iotranslate.go needs; real command encoding is a
// transport concern, out of scope here).
type Command struct {
	Opcode       Opcode
	OffsetBlocks uint64
	NumBlocks    uint64
	Data         [][]byte
	Metadata     []byte
	Flags        uint32
	Cdw13        uint32
	DsmRanges    []DsmRange
	CID          uint32
}

// Opcode enumerates the NVMe commands the translation layer emits.
type Opcode int

const (
	OpRead Opcode = iota
	OpWrite
	OpDsmDeallocate
	OpWriteZeroes
	OpFlush
	OpCompare
	OpFusedCompareWrite
	OpAbort
	OpAdminPassthru
	OpIOPassthru
)

// DsmRange is one deallocate range for an UNMAP command; NumBlocks is
// capped at 2^32-1 per spec §4.6.
type DsmRange struct {
	OffsetBlocks uint64
	NumBlocks    uint32
}

// ControllerData is the subset of NVMe Identify Controller data the
// reset/retry/translation logic consults.
type ControllerData struct {
	MDTS uint32 // max data transfer size, in blocks
	Crdt [3]uint16
	Oncs uint32 // optional NVM command support bitmask (compare, write-zeroes, dsm...)
	Vwc  bool   // volatile write cache present
}

// NamespaceAna is one entry from the ANA log page.
type NamespaceAna struct {
	NSID  uint32
	State AnaState
}
