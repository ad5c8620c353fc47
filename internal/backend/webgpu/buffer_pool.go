//go:build windows

package webgpu

import (
	"math/bits"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

const (
	// minPooledSize is the smallest buffer the pool hands out.
	minPooledSize = 256
	// maxPerClass caps idle buffers kept per size class and usage.
	maxPerClass = 16
)

// poolKey identifies interchangeable buffers: same power-of-two size class and
// same usage flags.
type poolKey struct {
	class uint8
	usage wgpu.BufferUsage
}

// BufferPool recycles device buffers between dispatches. Training steps issue
// the same shapes every batch, so after the first step nearly every output and
// staging buffer comes from the pool.
type BufferPool struct {
	device *wgpu.Device

	mu   sync.Mutex
	idle map[poolKey][]*wgpu.Buffer

	// Statistics
	totalAllocated uint64
	totalReleased  uint64
	poolHits       uint64
	poolMisses     uint64
}

// NewBufferPool creates a pool for device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{
		device: device,
		idle:   make(map[poolKey][]*wgpu.Buffer),
	}
}

// sizeClass rounds size up to a power of two and returns its exponent.
func sizeClass(size uint64) (uint8, uint64) {
	if size <= minPooledSize {
		size = minPooledSize
	}
	class := uint8(bits.Len64(size - 1))
	return class, uint64(1) << class
}

// Acquire returns a buffer of at least size bytes with the given usage. The
// contents are unspecified.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	class, rounded := sizeClass(size)
	key := poolKey{class: class, usage: usage}

	p.mu.Lock()
	defer p.mu.Unlock()

	if free := p.idle[key]; len(free) > 0 {
		buffer := free[len(free)-1]
		p.idle[key] = free[:len(free)-1]
		p.poolHits++
		return buffer
	}

	p.poolMisses++
	p.totalAllocated++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  rounded,
	})
}

// Release returns a buffer obtained from Acquire with the same size and usage.
// If the class is full the buffer is destroyed.
func (p *BufferPool) Release(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	class, _ := sizeClass(size)
	key := poolKey{class: class, usage: usage}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalReleased++
	if len(p.idle[key]) >= maxPerClass {
		buffer.Release()
		return
	}
	p.idle[key] = append(p.idle[key], buffer)
}

// Clear destroys every idle buffer.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, free := range p.idle {
		for _, buffer := range free {
			buffer.Release()
		}
		delete(p.idle, key)
	}
}

// Stats returns statistics about buffer pool usage.
func (p *BufferPool) Stats() (allocated, released, hits, misses uint64, pooledCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, free := range p.idle {
		pooledCount += len(free)
	}
	return p.totalAllocated, p.totalReleased, p.poolHits, p.poolMisses, pooledCount
}
