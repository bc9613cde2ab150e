// Package alloc implements the bump-pointer and chained physical memory
// allocators used to carve out placement addresses for fixated mappings
// and page tables. Allocation never frees: the builder runs once and exits.
package alloc

import "github.com/epoxyos/harden/internal/interval"

// Allocator hands out aligned, non-overlapping regions of a fixed size.
type Allocator interface {
	// Alloc reserves size bytes and returns their start address, or false
	// if the allocator has no room left.
	Alloc(size uint64) (uint64, bool)
}

func isPowerOfTwo(n uint64) bool {
	return n > 0 && n&(n-1) == 0
}

// Bump is a bump-pointer allocator over a single contiguous region.
type Bump struct {
	current  uint64
	end      uint64
	minAlign uint64
}

// NewBump creates a bump allocator over [start, end), rounding every
// allocation up to a multiple of minAlign. start must already be aligned
// and minAlign must be a nonzero power of two.
func NewBump(start, end, minAlign uint64) *Bump {
	if start > end {
		panic("alloc: start > end")
	}
	if minAlign == 0 || !isPowerOfTwo(minAlign) {
		panic("alloc: minAlign must be a nonzero power of two")
	}
	if start&(minAlign-1) != 0 {
		panic("alloc: start is not aligned to minAlign")
	}
	return &Bump{current: start, end: end, minAlign: minAlign}
}

// NewBumpFromInterval creates a bump allocator spanning ivl, aligned to
// minAlign; ivl.From is assumed already aligned.
func NewBumpFromInterval(ivl interval.Interval, minAlign uint64) *Bump {
	return NewBump(ivl.From, ivl.To, minAlign)
}

// Alloc reserves size bytes, advancing the cursor to the next multiple of
// minAlign at or beyond size. It fails if the advanced cursor would exceed
// end or if the arithmetic would overflow.
func (b *Bump) Alloc(size uint64) (uint64, bool) {
	cur := b.current

	padded, overflow := addOverflows(size, b.minAlign-1)
	if overflow {
		return 0, false
	}
	nextAligned, overflow := addOverflows(cur, padded)
	if overflow {
		return 0, false
	}
	nextAligned &^= b.minAlign - 1

	if nextAligned <= b.end {
		b.current = nextAligned
		return cur, true
	}
	return 0, false
}

func addOverflows(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

// Chained tries a sequence of backends in order, permanently retiring a
// backend once it fails to satisfy a request. Requests are never split
// across backends.
type Chained struct {
	// backends holds the allocators in reverse order: the next one to try
	// is the last element, so retiring it is an O(1) pop.
	backends []Allocator
}

// NewChained builds a Chained allocator that tries backends in the given
// order, i.e. backends[0] first.
func NewChained(backends ...Allocator) *Chained {
	reversed := make([]Allocator, len(backends))
	for i, b := range backends {
		reversed[len(backends)-1-i] = b
	}
	return &Chained{backends: reversed}
}

// Alloc tries the current backend; if it is exhausted, it is retired and
// the next backend is tried.
func (c *Chained) Alloc(size uint64) (uint64, bool) {
	for len(c.backends) > 0 {
		top := c.backends[len(c.backends)-1]
		if addr, ok := top.Alloc(size); ok {
			return addr, true
		}
		c.backends = c.backends[:len(c.backends)-1]
	}
	return 0, false
}
