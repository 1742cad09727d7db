// Package memory probes how much of a memory pool can actually be
// allocated and written.
package memory

// Region is a block handed out by an Allocator.
type Region interface {
	// Len returns the size of the region in bytes.
	Len() int

	// Fill stamps every byte of the region with b.
	Fill(b byte)

	// Bytes exposes the backing memory. Allocators that only keep a
	// ledger return nil.
	Bytes() []byte
}

// Allocator hands out regions of a fixed size. Alloc returns an error
// wrapping domain.ErrExhausted when the request cannot be served.
type Allocator interface {
	Alloc(size int) (Region, error)
	Free(r Region)
}

// Stats is implemented by allocators that know their own capacity.
type Stats interface {
	Size() uint64
	Available() uint64
}
