// Package ram provides a RAM-backed bdev module, the block-addressed
// generalization of an in-memory sharded-lock backend: sharded RWMutexes
// bound to fixed byte ranges give parallel I/O across channels without a
// single global lock.
package ram

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-bdev/bdev/module"
)

// shardSize is the byte span each lock shard covers. 64KiB keeps shard
// count reasonable for large devices while still giving enough parallelism
// for 4K random I/O across channels.
const shardSize = 64 * 1024

// Module is a RAM-backed module.Module implementation, the reference
// in-process module.
type Module struct {
	data      []byte
	blockLen  uint32
	numBlocks uint64
	shards    []sync.RWMutex
}

// New creates a RAM module of numBlocks blocks of blockLen bytes each.
func New(numBlocks uint64, blockLen uint32) *Module {
	size := numBlocks * uint64(blockLen)
	n := (size + shardSize - 1) / shardSize
	if n == 0 {
		n = 1
	}
	return &Module{
		data:      make([]byte, size),
		blockLen:  blockLen,
		numBlocks: numBlocks,
		shards:    make([]sync.RWMutex, n),
	}
}

// Geometry implements module.Module.
func (m *Module) Geometry() module.Geometry {
	return module.Geometry{
		BlockLen:  m.blockLen,
		NumBlocks: m.numBlocks,
		// RAM has no segment/boundary constraints of its own; the core's
		// configured bdev limits (not the module's) drive splitting.
	}
}

func (m *Module) shardRange(byteOff, byteLen uint64) (start, end int) {
	start = int(byteOff / shardSize)
	end = int((byteOff + byteLen - 1) / shardSize)
	if end >= len(m.shards) {
		end = len(m.shards) - 1
	}
	return start, end
}

func (m *Module) bounds(offsetBlocks, numBlocks uint64) (byteOff, byteLen uint64, err error) {
	if offsetBlocks+numBlocks > m.numBlocks {
		return 0, 0, fmt.Errorf("ram: access [%d,%d) exceeds device of %d blocks", offsetBlocks, offsetBlocks+numBlocks, m.numBlocks)
	}
	return offsetBlocks * uint64(m.blockLen), numBlocks * uint64(m.blockLen), nil
}

func flatten(iovs []module.IoVec, want uint64) []byte {
	if len(iovs) == 1 && uint64(len(iovs[0])) == want {
		return iovs[0]
	}
	buf := make([]byte, 0, want)
	for _, v := range iovs {
		buf = append(buf, v...)
	}
	return buf
}

func scatter(iovs []module.IoVec, src []byte) {
	if len(iovs) == 1 && len(iovs[0]) == len(src) {
		copy(iovs[0], src)
		return
	}
	off := 0
	for _, v := range iovs {
		n := copy(v, src[off:])
		off += n
	}
}

// ReadAt implements module.Module.
func (m *Module) ReadAt(ctx context.Context, iovs []module.IoVec, offsetBlocks, numBlocks uint64) error {
	byteOff, byteLen, err := m.bounds(offsetBlocks, numBlocks)
	if err != nil {
		return err
	}
	startShard, endShard := m.shardRange(byteOff, byteLen)
	for i := startShard; i <= endShard; i++ {
		m.shards[i].RLock()
	}
	scatter(iovs, m.data[byteOff:byteOff+byteLen])
	for i := startShard; i <= endShard; i++ {
		m.shards[i].RUnlock()
	}
	return nil
}

// WriteAt implements module.Module.
func (m *Module) WriteAt(ctx context.Context, iovs []module.IoVec, offsetBlocks, numBlocks uint64) error {
	byteOff, byteLen, err := m.bounds(offsetBlocks, numBlocks)
	if err != nil {
		return err
	}
	src := flatten(iovs, byteLen)
	startShard, endShard := m.shardRange(byteOff, byteLen)
	for i := startShard; i <= endShard; i++ {
		m.shards[i].Lock()
	}
	copy(m.data[byteOff:byteOff+byteLen], src)
	for i := startShard; i <= endShard; i++ {
		m.shards[i].Unlock()
	}
	return nil
}

// Close implements module.Module.
func (m *Module) Close() error {
	m.data = nil
	return nil
}

// Unmap implements module.UnmapModule by zeroing the range.
func (m *Module) Unmap(ctx context.Context, offsetBlocks, numBlocks uint64) error {
	return m.zeroRange(offsetBlocks, numBlocks)
}

// WriteZeroes implements module.WriteZeroesModule.
func (m *Module) WriteZeroes(ctx context.Context, offsetBlocks, numBlocks uint64) error {
	return m.zeroRange(offsetBlocks, numBlocks)
}

func (m *Module) zeroRange(offsetBlocks, numBlocks uint64) error {
	byteOff, byteLen, err := m.bounds(offsetBlocks, numBlocks)
	if err != nil {
		return err
	}
	startShard, endShard := m.shardRange(byteOff, byteLen)
	for i := startShard; i <= endShard; i++ {
		m.shards[i].Lock()
	}
	for i := byteOff; i < byteOff+byteLen; i++ {
		m.data[i] = 0
	}
	for i := startShard; i <= endShard; i++ {
		m.shards[i].Unlock()
	}
	return nil
}

// Flush implements module.FlushModule; RAM has nothing to flush.
func (m *Module) Flush(ctx context.Context) error { return nil }

// Stats implements module.StatModule.
func (m *Module) Stats() map[string]any {
	return map[string]any{
		"type":       "ram",
		"num_blocks": m.numBlocks,
		"block_len":  m.blockLen,
		"num_shards": len(m.shards),
		"shard_size": shardSize,
	}
}

var (
	_ module.Module            = (*Module)(nil)
	_ module.UnmapModule       = (*Module)(nil)
	_ module.WriteZeroesModule = (*Module)(nil)
	_ module.FlushModule       = (*Module)(nil)
	_ module.StatModule        = (*Module)(nil)
)
