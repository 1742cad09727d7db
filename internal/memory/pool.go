package memory

import (
	"fmt"
	"sync"

	"github.com/qudata/memcheck/internal/domain"
)

// Pool is a byte-budgeted allocator over real memory. It stands in for
// the external RAM of the device: regions are ordinary Go slices, but the
// pool refuses to hand out more than its configured size.
type Pool struct {
	name string
	size uint64

	mu   sync.Mutex
	used uint64
}

// NewPool creates a pool named name holding size bytes.
func NewPool(name string, size uint64) *Pool {
	return &Pool{name: name, size: size}
}

// Name returns the pool label used in logs.
func (p *Pool) Name() string {
	return p.name
}

// Alloc reserves size bytes and returns a zeroed region.
func (p *Pool) Alloc(size int) (Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%s: invalid allocation size %d", p.name, size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.used+uint64(size) > p.size {
		return nil, fmt.Errorf("%s: %d bytes requested, %d free: %w",
			p.name, size, p.size-p.used, domain.ErrExhausted)
	}
	p.used += uint64(size)

	return &block{pool: p, buf: make([]byte, size)}, nil
}

// Free returns a region to the pool. Regions from other allocators and
// regions that were already freed are ignored.
func (p *Pool) Free(r Region) {
	b, ok := r.(*block)
	if !ok || b.pool != p || b.buf == nil {
		return
	}

	p.mu.Lock()
	p.used -= uint64(len(b.buf))
	p.mu.Unlock()

	b.buf = nil
}

// Size returns the capacity of the pool.
func (p *Pool) Size() uint64 {
	return p.size
}

// Available returns the number of bytes not currently handed out.
func (p *Pool) Available() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size - p.used
}

type block struct {
	pool *Pool
	buf  []byte
}

func (b *block) Len() int {
	return len(b.buf)
}

func (b *block) Fill(v byte) {
	if len(b.buf) == 0 {
		return
	}
	b.buf[0] = v
	for filled := 1; filled < len(b.buf); filled *= 2 {
		copy(b.buf[filled:], b.buf[:filled])
	}
}

func (b *block) Bytes() []byte {
	return b.buf
}
