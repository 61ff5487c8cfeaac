// Package mock provides a scriptable module.Module test double: it
// implements the optional unmap, write-zeroes, flush, reset and abort
// capabilities (not compare, stats or resize), tracks call counts, and lets a
// test inject failures or latency-free completion directly, the way the
// teacher's MockBackend tracks calls and exposes IsClosed/CallCounts
// instead of driving a real kernel device.
package mock

import (
	"context"
	"sync"

	"github.com/go-bdev/bdev/module"
)

// Module is a fully in-memory, fully instrumented module.Module.
type Module struct {
	mu        sync.Mutex
	data      []byte
	blockLen  uint32
	numBlocks uint64
	closed    bool

	// Injectable failures, checked before the corresponding operation runs.
	ReadErr        error
	WriteErr       error
	UnmapErr       error
	WriteZeroesErr error
	FlushErr       error
	ResetErr       error
	AbortErr       error

	readCalls        int
	writeCalls       int
	unmapCalls       int
	writeZeroesCalls int
	flushCalls       int
	resetCalls       int
	abortCalls       int
}

// New creates a mock module of numBlocks blocks of blockLen bytes.
func New(numBlocks uint64, blockLen uint32) *Module {
	return &Module{
		data:      make([]byte, numBlocks*uint64(blockLen)),
		blockLen:  blockLen,
		numBlocks: numBlocks,
	}
}

// Geometry implements module.Module.
func (m *Module) Geometry() module.Geometry {
	return module.Geometry{BlockLen: m.blockLen, NumBlocks: m.numBlocks}
}

// ReadAt implements module.Module.
func (m *Module) ReadAt(ctx context.Context, iovs []module.IoVec, offsetBlocks, numBlocks uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if m.ReadErr != nil {
		return m.ReadErr
	}
	off := offsetBlocks * uint64(m.blockLen)
	for _, v := range iovs {
		n := copy(v, m.data[off:])
		off += uint64(n)
	}
	return nil
}

// WriteAt implements module.Module.
func (m *Module) WriteAt(ctx context.Context, iovs []module.IoVec, offsetBlocks, numBlocks uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	off := offsetBlocks * uint64(m.blockLen)
	for _, v := range iovs {
		n := copy(m.data[off:], v)
		off += uint64(n)
	}
	return nil
}

// Close implements module.Module.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

// Unmap implements module.UnmapModule.
func (m *Module) Unmap(ctx context.Context, offsetBlocks, numBlocks uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmapCalls++
	return m.UnmapErr
}

// WriteZeroes implements module.WriteZeroesModule.
func (m *Module) WriteZeroes(ctx context.Context, offsetBlocks, numBlocks uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeZeroesCalls++
	return m.WriteZeroesErr
}

// Flush implements module.FlushModule.
func (m *Module) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushCalls++
	return m.FlushErr
}

// Reset implements module.ResetModule.
func (m *Module) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	return m.ResetErr
}

// Abort implements module.AbortModule.
func (m *Module) Abort(ctx context.Context, handle any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abortCalls++
	return m.AbortErr
}

// IsClosed reports whether Close has been called.
func (m *Module) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CallCounts returns how many times each operation has been invoked, for
// assertions in tests that drive the bdev core against this module.
func (m *Module) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"read":         m.readCalls,
		"write":        m.writeCalls,
		"unmap":        m.unmapCalls,
		"write_zeroes": m.writeZeroesCalls,
		"flush":        m.flushCalls,
		"reset":        m.resetCalls,
		"abort":        m.abortCalls,
	}
}

// ResetCounters zeroes all call counters without touching injected errors
// or backing data.
func (m *Module) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls, m.writeCalls, m.unmapCalls = 0, 0, 0
	m.writeZeroesCalls, m.flushCalls, m.resetCalls, m.abortCalls = 0, 0, 0, 0
}

var (
	_ module.Module            = (*Module)(nil)
	_ module.UnmapModule       = (*Module)(nil)
	_ module.WriteZeroesModule = (*Module)(nil)
	_ module.FlushModule       = (*Module)(nil)
	_ module.ResetModule       = (*Module)(nil)
	_ module.AbortModule       = (*Module)(nil)
)
