// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
//
// Bounded reuse cache of fixed-size receive buffers.

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// Stats is a point-in-time view of pool activity.
type Stats struct {
	Allocated uint64 // buffers created because the pool was empty
	Reused    uint64 // buffers handed out from the idle queue
	Dropped   uint64 // buffers discarded on Put (pool full or undersized)
	Idle      int    // buffers currently held by the pool
}

// BufferPool hands out buffers of one size. Get never fails: an empty pool
// allocates. Put retains at most capacity buffers and discards the rest.
type BufferPool struct {
	mu       sync.Mutex
	idle     *queue.Queue
	size     int
	capacity int

	allocated atomic.Uint64
	reused    atomic.Uint64
	dropped   atomic.Uint64
}

// NewBufferPool creates a pool of bufSize-byte buffers retaining at most
// capacity idle buffers.
func NewBufferPool(bufSize, capacity int) *BufferPool {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if capacity < 0 {
		capacity = 0
	}
	return &BufferPool{
		idle:     queue.New(),
		size:     bufSize,
		capacity: capacity,
	}
}

// Get returns a buffer of exactly BufferSize bytes owned by the caller until Put.
func (p *BufferPool) Get() []byte {
	p.mu.Lock()
	if p.idle.Length() > 0 {
		buf := p.idle.Remove().([]byte)
		p.mu.Unlock()
		p.reused.Add(1)
		return buf[:p.size]
	}
	p.mu.Unlock()
	p.allocated.Add(1)
	return make([]byte, p.size)
}

// Put returns buf to the pool. The caller must not touch buf afterwards.
func (p *BufferPool) Put(buf []byte) {
	if cap(buf) < p.size {
		p.dropped.Add(1)
		return
	}
	p.mu.Lock()
	if p.idle.Length() >= p.capacity {
		p.mu.Unlock()
		p.dropped.Add(1)
		return
	}
	p.idle.Add(buf[:p.size])
	p.mu.Unlock()
}

// BufferSize reports the length of buffers returned by Get.
func (p *BufferPool) BufferSize() int {
	return p.size
}

// Capacity reports the maximum number of idle buffers retained.
func (p *BufferPool) Capacity() int {
	return p.capacity
}

// Stats returns pool counters.
func (p *BufferPool) Stats() Stats {
	p.mu.Lock()
	idle := p.idle.Length()
	p.mu.Unlock()
	return Stats{
		Allocated: p.allocated.Load(),
		Reused:    p.reused.Load(),
		Dropped:   p.dropped.Load(),
		Idle:      idle,
	}
}
