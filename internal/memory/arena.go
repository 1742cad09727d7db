package memory

// Entry is one ledger line of an Arena.
type Entry struct {
	Index int
	Size  int
	Fill  byte
}

// Arena keeps every region a probe obtained alive until Release.
type Arena struct {
	alloc   Allocator
	regions []Region
	entries []Entry
	total   uint64
}

func newArena(alloc Allocator) *Arena {
	return &Arena{alloc: alloc}
}

func (a *Arena) add(r Region, fill byte) {
	a.entries = append(a.entries, Entry{
		Index: len(a.entries),
		Size:  r.Len(),
		Fill:  fill,
	})
	a.regions = append(a.regions, r)
	a.total += uint64(r.Len())
}

// Len returns the number of regions held.
func (a *Arena) Len() int {
	if a == nil {
		return 0
	}
	return len(a.entries)
}

// Bytes returns the total size of the regions held.
func (a *Arena) Bytes() uint64 {
	if a == nil {
		return 0
	}
	return a.total
}

// Entries returns a copy of the ledger in allocation order.
func (a *Arena) Entries() []Entry {
	if a == nil {
		return nil
	}
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Release frees every held region back to its allocator. It is safe to
// call more than once and on a nil Arena.
func (a *Arena) Release() {
	if a == nil {
		return
	}
	for _, r := range a.regions {
		a.alloc.Free(r)
	}
	a.regions = nil
	a.entries = nil
	a.total = 0
}
