package nvme

import (
	"context"

	"github.com/go-bdev/bdev/module"
)

// maxDsmRanges and maxDsmRangeBlocks are the DSM-deallocate (unmap) limits
// of spec §4.6: at most 256 ranges, each at most 2^32-1 blocks.
const (
	maxDsmRanges      = 256
	maxDsmRangeBlocks = 1<<32 - 1
	// maxWriteZeroesBlocks is the 16-bit NLB limit of a single WRITE ZEROES
	// command; larger requests must be split by the upper bdev layer.
	maxWriteZeroesBlocks = 65536
)

// Bdev is the NVMe multipath bdev module (component H wired onto F/G): it
// implements module.Module by translating generic vectored read/write/
// unmap/write-zeroes/flush/compare calls into NVMe commands issued through
// whichever io-path its NvmeBdevChannel selects.
type Bdev struct {
	channel           *NvmeBdevChannel
	blockLen          uint32
	numBlocks         uint64
	writeCacheEnabled bool
	compareSupported  bool
}

// NewBdev wraps a multipath channel as a module.Module.
func NewBdev(channel *NvmeBdevChannel, numBlocks uint64, blockLen uint32, writeCacheEnabled, compareSupported bool) *Bdev {
	return &Bdev{channel: channel, blockLen: blockLen, numBlocks: numBlocks, writeCacheEnabled: writeCacheEnabled, compareSupported: compareSupported}
}

// Geometry implements module.Module.
func (b *Bdev) Geometry() module.Geometry {
	return module.Geometry{BlockLen: b.blockLen, NumBlocks: b.numBlocks}
}

// Close implements module.Module; the multipath layer's controllers are
// owned by whoever constructed them, so Close here is a no-op.
func (b *Bdev) Close() error { return nil }

func (b *Bdev) selectDataPath() (*IoPath, error) {
	return b.channel.SelectPath(false)
}

// ReadAt implements module.Module by issuing an NVMe READ.
func (b *Bdev) ReadAt(ctx context.Context, iovs []module.IoVec, offsetBlocks, numBlocks uint64) error {
	p, err := b.selectDataPath()
	if err != nil {
		return translateSelectErr(err)
	}
	cs := p.Qpair.SubmitIO(ctx, Command{Opcode: OpRead, OffsetBlocks: offsetBlocks, NumBlocks: numBlocks, Data: iovs})
	return translateCompletion(cs, b.channel)
}

// WriteAt implements module.Module by issuing an NVMe WRITE.
func (b *Bdev) WriteAt(ctx context.Context, iovs []module.IoVec, offsetBlocks, numBlocks uint64) error {
	p, err := b.selectDataPath()
	if err != nil {
		return translateSelectErr(err)
	}
	cs := p.Qpair.SubmitIO(ctx, Command{Opcode: OpWrite, OffsetBlocks: offsetBlocks, NumBlocks: numBlocks, Data: iovs})
	return translateCompletion(cs, b.channel)
}

// Unmap implements module.UnmapModule via DSM Deallocate, partitioning the
// requested range per spec §4.6's 256-range/2^32-1-block-per-range limits.
func (b *Bdev) Unmap(ctx context.Context, offsetBlocks, numBlocks uint64) error {
	ranges, err := partitionDsmRanges(offsetBlocks, numBlocks)
	if err != nil {
		return err
	}
	p, err := b.selectDataPath()
	if err != nil {
		return translateSelectErr(err)
	}
	cs := p.Qpair.SubmitIO(ctx, Command{Opcode: OpDsmDeallocate, DsmRanges: ranges})
	return translateCompletion(cs, b.channel)
}

func partitionDsmRanges(offsetBlocks, numBlocks uint64) ([]DsmRange, error) {
	var ranges []DsmRange
	remaining := numBlocks
	cur := offsetBlocks
	for remaining > 0 {
		n := remaining
		if n > maxDsmRangeBlocks {
			n = maxDsmRangeBlocks
		}
		ranges = append(ranges, DsmRange{OffsetBlocks: cur, NumBlocks: uint32(n)})
		cur += n
		remaining -= n
		if len(ranges) > maxDsmRanges {
			return nil, errTooManyRanges
		}
	}
	return ranges, nil
}

// WriteZeroes implements module.WriteZeroesModule via WRITE ZEROES, valid
// for up to maxWriteZeroesBlocks per command (spec §4.6); the bdev core's
// own split gate is expected to keep child I/O within this bound.
func (b *Bdev) WriteZeroes(ctx context.Context, offsetBlocks, numBlocks uint64) error {
	if numBlocks > maxWriteZeroesBlocks {
		return errWriteZeroesTooLarge
	}
	p, err := b.selectDataPath()
	if err != nil {
		return translateSelectErr(err)
	}
	cs := p.Qpair.SubmitIO(ctx, Command{Opcode: OpWriteZeroes, OffsetBlocks: offsetBlocks, NumBlocks: numBlocks})
	return translateCompletion(cs, b.channel)
}

// Flush implements module.FlushModule, skipped entirely when the device has
// no volatile write cache to flush (spec §4.6).
func (b *Bdev) Flush(ctx context.Context) error {
	if !b.writeCacheEnabled {
		return nil
	}
	p, err := b.selectDataPath()
	if err != nil {
		return translateSelectErr(err)
	}
	cs := p.Qpair.SubmitIO(ctx, Command{Opcode: OpFlush})
	return translateCompletion(cs, b.channel)
}

// Compare implements module.CompareModule, falling back to read+memcmp when
// the controller lacks native compare support (spec §4.6).
func (b *Bdev) Compare(ctx context.Context, iovs []module.IoVec, offsetBlocks, numBlocks uint64) error {
	p, err := b.selectDataPath()
	if err != nil {
		return translateSelectErr(err)
	}
	if !b.compareSupported {
		return b.emulatedCompare(ctx, p, iovs, offsetBlocks, numBlocks)
	}
	cs := p.Qpair.SubmitIO(ctx, Command{Opcode: OpCompare, OffsetBlocks: offsetBlocks, NumBlocks: numBlocks, Data: iovs})
	return translateCompletion(cs, b.channel)
}

func (b *Bdev) emulatedCompare(ctx context.Context, p *IoPath, iovs []module.IoVec, offsetBlocks, numBlocks uint64) error {
	bufs := make([]module.IoVec, len(iovs))
	for i, v := range iovs {
		bufs[i] = make([]byte, len(v))
	}
	cs := p.Qpair.SubmitIO(ctx, Command{Opcode: OpRead, OffsetBlocks: offsetBlocks, NumBlocks: numBlocks, Data: bufs})
	if err := translateCompletion(cs, b.channel); err != nil {
		return err
	}
	for i := range iovs {
		if len(iovs[i]) != len(bufs[i]) {
			return errCompareMismatch
		}
		for j := range iovs[i] {
			if iovs[i][j] != bufs[i][j] {
				return errCompareMismatch
			}
		}
	}
	return nil
}

func translateSelectErr(err error) error {
	if Retryable(err) {
		return errPathRetryable
	}
	return err
}

// translateCompletion implements spec §4.5.2's NVMe completion handling: on
// a path-level error it invalidates the channel's cached path so the next
// I/O reselects.
func translateCompletion(cs CompletionStatus, ch *NvmeBdevChannel) error {
	if cs.Success {
		return nil
	}
	if cs.PathError || cs.AbortedSQDeletion || cs.AnaError {
		ch.ClearCache()
		return errPathRetryable
	}
	if cs.Err != nil {
		return cs.Err
	}
	return errIOFailed
}

const (
	errTooManyRanges       = errString("nvme: unmap request needs more than 256 DSM ranges")
	errWriteZeroesTooLarge = errString("nvme: write-zeroes request exceeds 65536-block NVMe limit")
	errCompareMismatch     = errString("nvme: compare mismatch")
	errPathRetryable       = errString("nvme: no path currently available, retry")
	errIOFailed            = errString("nvme: I/O command failed")
)

// Reset implements module.ResetModule by resetting every controller behind
// this channel's paths, per spec §4.5.3.
func (b *Bdev) Reset(ctx context.Context) error {
	seen := make(map[*Ctrlr]bool)
	for _, p := range b.channel.paths {
		if seen[p.Ctrlr] {
			continue
		}
		seen[p.Ctrlr] = true
		if _, err := p.Ctrlr.ResetCtrlr(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Abort implements module.AbortModule by sending an NVMe ABORT for cid to
// the admin queue of every connected controller behind this channel's
// paths. It does not look up the path the I/O was submitted on, and it
// ignores the result of each individual abort.
func (b *Bdev) Abort(ctx context.Context, handle any) error {
	cid, _ := handle.(uint32)
	for _, p := range b.channel.paths {
		if p.Ctrlr.adminQ == nil {
			continue
		}
		_ = p.Ctrlr.adminQ.Abort(ctx, cid)
	}
	return nil
}

var (
	_ module.Module            = (*Bdev)(nil)
	_ module.UnmapModule       = (*Bdev)(nil)
	_ module.WriteZeroesModule = (*Bdev)(nil)
	_ module.FlushModule       = (*Bdev)(nil)
	_ module.CompareModule     = (*Bdev)(nil)
	_ module.ResetModule       = (*Bdev)(nil)
	_ module.AbortModule       = (*Bdev)(nil)
)
