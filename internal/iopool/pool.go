// Package iopool implements the process-wide I/O descriptor pool and the
// per-channel caches that front it (spec §4.3), plus the size-bucketed
// bounce-buffer pool used for bounce buffers and split children.
package iopool

import (
	"sync"
)

// Descriptor is the minimal shape a pooled object must have: pool-managed
// objects are recycled by value via a free-list, not by sync.Pool, because
// the pool enforces a hard `pool_size` ceiling and a wait-queue drain order
// that sync.Pool cannot express.
type Descriptor interface {
	// Reset clears any I/O-specific state before the descriptor is reused.
	Reset()
}

// Pool is the process-wide descriptor pool with per-thread caches described
// in spec §4.3: a bounded free-list backing many per-channel caches, get()
// returning nil rather than blocking when a cache is empty and the thread
// has waiters (to avoid starving them), and put() draining one waiter per
// freed slot.
type Pool[T Descriptor] struct {
	mu       sync.Mutex
	free     []T
	new      func() T
	poolSize int
	cacheCap int
}

// NewPool creates a process-wide pool of the given size, pre-populated by
// calling newFn poolSize times.
func NewPool[T Descriptor](poolSize, cacheSize int, newFn func() T) *Pool[T] {
	p := &Pool[T]{
		new:      newFn,
		poolSize: poolSize,
		cacheCap: cacheSize,
		free:     make([]T, 0, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		p.free = append(p.free, newFn())
	}
	return p
}

// getFromGlobal pops one descriptor from the process-wide free list. It
// returns the zero value and false if the pool is exhausted.
func (p *Pool[T]) getFromGlobal() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var zero T
	n := len(p.free)
	if n == 0 {
		return zero, false
	}
	d := p.free[n-1]
	p.free = p.free[:n-1]
	return d, true
}

// putToGlobal returns a descriptor to the process-wide free list.
func (p *Pool[T]) putToGlobal(d T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d.Reset()
	p.free = append(p.free, d)
}

// Channel is a per-thread cache in front of a Pool, implementing the
// get/put rules of spec §4.3. It is not safe for concurrent use by more
// than one goroutine, matching the single-thread-per-channel model: every
// BdevChannel owns exactly one Channel cache.
type Channel[T Descriptor] struct {
	pool    *Pool[T]
	cache   []T
	waiters int
}

// NewChannel creates a per-thread cache bound to pool.
func NewChannel[T Descriptor](pool *Pool[T]) *Channel[T] {
	return &Channel[T]{pool: pool, cache: make([]T, 0, pool.cacheCap)}
}

// Get pops a descriptor from the thread cache, falling back to the global
// pool. If the cache is empty and callers are already waiting on this
// channel, Get returns (zero, false) rather than reaching into the global
// pool, so a burst on one channel cannot starve another channel's waiters.
func (c *Channel[T]) Get() (T, bool) {
	if n := len(c.cache); n > 0 {
		d := c.cache[n-1]
		c.cache = c.cache[:n-1]
		return d, true
	}
	if c.waiters > 0 {
		var zero T
		return zero, false
	}
	return c.pool.getFromGlobal()
}

// Put pushes a descriptor back to the thread cache if there is room,
// otherwise returns it to the global pool. Exactly one waiter, if any, is
// released per freed slot.
func (c *Channel[T]) Put(d T) {
	if len(c.cache) < c.pool.cacheCap {
		d.Reset()
		c.cache = append(c.cache, d)
	} else {
		c.pool.putToGlobal(d)
	}
	if c.waiters > 0 {
		c.waiters--
	}
}

// MarkWaiting records that a caller is blocked waiting for a descriptor on
// this channel, per the starvation-avoidance rule in Get.
func (c *Channel[T]) MarkWaiting() {
	c.waiters++
}

// Waiters reports how many callers are currently blocked on this channel.
func (c *Channel[T]) Waiters() int {
	return c.waiters
}

// Cached reports how many descriptors currently sit in the thread cache.
func (c *Channel[T]) Cached() int {
	return len(c.cache)
}
