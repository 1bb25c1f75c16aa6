// Package bufpool provides size-classed byte buffer pooling. The cipher
// engine draws its key buffers from Global; the chunk codec and the
// compressor allocate their own buffers and do not use this package.
package bufpool

import (
	"sync"
	"sync/atomic"
)

// Size classes tuned to the shapes BAR actually allocates: chunk headers
// (12 bytes), cipher IVs/keys (up to 32 bytes) and compression/cipher
// blocks (up to 64KB).
const (
	ClassHeader = 12
	ClassKey    = 32
	ClassBlock  = 64 * 1024
)

// Pool is a thread-safe pool of byte buffers bucketed by size class.
// Buffers are zeroized before being returned to a pool so that sensitive
// key/IV material and plaintext fragments never leak across reuse.
type Pool struct {
	header *sync.Pool
	key    *sync.Pool
	block  *sync.Pool

	hitsHeader, missesHeader int64
	hitsKey, missesKey       int64
	hitsBlock, missesBlock   int64
}

// Global is the package-wide default pool, mirroring the single shared
// instance used throughout the archive write/read pipeline.
var Global = New()

// New creates a fresh, independent buffer pool.
func New() *Pool {
	return &Pool{
		// No New funcs: an empty pool must return nil so that the
		// get* helpers can count the miss before allocating.
		header: &sync.Pool{},
		key:    &sync.Pool{},
		block:  &sync.Pool{},
	}
}

// Get returns a buffer of at least size bytes, rounding up to the nearest
// size class when one fits; sizes above the block class always allocate.
func (p *Pool) Get(size int) []byte {
	switch {
	case size <= ClassHeader:
		return p.getHeader()[:size]
	case size <= ClassKey:
		return p.getKey()[:size]
	case size <= ClassBlock:
		buf := p.getBlock()
		if cap(buf) >= size {
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the pool matching its capacity, after zeroizing it.
func (p *Pool) Put(buf []byte) {
	switch cap(buf) {
	case ClassHeader:
		zero(buf)
		p.header.Put(buf[:ClassHeader])
	case ClassKey:
		zero(buf)
		p.key.Put(buf[:ClassKey])
	case ClassBlock:
		zero(buf)
		p.block.Put(buf[:ClassBlock])
	}
}

func (p *Pool) getHeader() []byte {
	if b, ok := p.header.Get().([]byte); ok {
		atomic.AddInt64(&p.hitsHeader, 1)
		return b
	}
	atomic.AddInt64(&p.missesHeader, 1)
	return make([]byte, ClassHeader)
}

func (p *Pool) getKey() []byte {
	if b, ok := p.key.Get().([]byte); ok {
		atomic.AddInt64(&p.hitsKey, 1)
		return b
	}
	atomic.AddInt64(&p.missesKey, 1)
	return make([]byte, ClassKey)
}

func (p *Pool) getBlock() []byte {
	if b, ok := p.block.Get().([]byte); ok {
		atomic.AddInt64(&p.hitsBlock, 1)
		return b
	}
	atomic.AddInt64(&p.missesBlock, 1)
	return make([]byte, ClassBlock)
}

func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// Metrics reports hit/miss counters per size class, for the prometheus
// collector in internal/metrics.
type Metrics struct {
	HitsHeader, MissesHeader int64
	HitsKey, MissesKey       int64
	HitsBlock, MissesBlock   int64
}

// Stats returns a snapshot of the pool's hit/miss counters.
func (p *Pool) Stats() Metrics {
	return Metrics{
		HitsHeader:   atomic.LoadInt64(&p.hitsHeader),
		MissesHeader: atomic.LoadInt64(&p.missesHeader),
		HitsKey:      atomic.LoadInt64(&p.hitsKey),
		MissesKey:    atomic.LoadInt64(&p.missesKey),
		HitsBlock:    atomic.LoadInt64(&p.hitsBlock),
		MissesBlock:  atomic.LoadInt64(&p.missesBlock),
	}
}
