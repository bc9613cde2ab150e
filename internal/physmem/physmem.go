// Package physmem models the scratch physical memory the builder lays
// out at build time: every byte that ends up in the final image is
// written here first, then flattened into chunks for the ELF writer.
package physmem

import (
	"sort"

	"github.com/epoxyos/harden/internal/alloc"
	"github.com/epoxyos/harden/internal/interval"
)

// PlaceMode selects how Place deduplicates the bytes it places.
type PlaceMode int

const (
	// Unique always allocates a fresh address.
	Unique PlaceMode = iota
	// Shareable reuses a previous placement of byte-identical content.
	Shareable
)

// Chunk is a contiguous range of physical memory and its content.
type Chunk struct {
	Paddr uint64
	Data  []byte
}

func (c Chunk) interval() interval.Interval {
	return interval.NewWithSize(c.Paddr, uint64(len(c.Data)))
}

// Memory is an addressed, append-only byte store with overwrite semantics:
// a later write wins over an earlier one wherever the two overlap.
type Memory struct {
	chunks []Chunk
}

// Write appends a chunk. Overlapping writes are permitted; later writes
// win when the memory is read or flattened.
func (m *Memory) Write(paddr uint64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.chunks = append(m.chunks, Chunk{Paddr: paddr, Data: cp})
}

// Read returns exactly size bytes starting at paddr. Bytes never written
// read as zero.
func (m *Memory) Read(paddr, size uint64) []byte {
	return readRec(m.chunks, interval.NewWithSize(paddr, size))
}

// readRec scans chunks in reverse insertion order (index len-1 down to 0,
// passed here as a shrinking prefix slice) so that later writes shadow earlier ones.
func readRec(chunks []Chunk, want interval.Interval) []byte {
	if want.Empty() {
		return nil
	}
	if len(chunks) == 0 {
		return make([]byte, want.Size())
	}

	last := chunks[len(chunks)-1]
	rest := chunks[:len(chunks)-1]
	chunkIvl := last.interval()

	if !want.Intersects(chunkIvl) {
		return readRec(rest, want)
	}

	overlap := want.Intersection(chunkIvl)

	out := make([]byte, 0, want.Size())
	if want.From < chunkIvl.From {
		out = append(out, readRec(rest, interval.New(want.From, chunkIvl.From))...)
	}
	start := overlap.From - chunkIvl.From
	out = append(out, last.Data[start:start+overlap.Size()]...)
	if overlap.To < want.To {
		out = append(out, readRec(rest, interval.New(overlap.To, want.To))...)
	}
	return out
}

// flatten returns the minimal list of joinable-merged, non-overlapping
// chunks in ascending paddr order, each re-read from the full chunk list
// so later-write-wins semantics are preserved.
func flatten(chunks []Chunk) []Chunk {
	if len(chunks) == 0 {
		return nil
	}

	ivls := make([]interval.Interval, len(chunks))
	for i, c := range chunks {
		ivls[i] = c.interval()
	}
	sort.Slice(ivls, func(i, j int) bool { return ivls[i].From < ivls[j].From })

	merged := []interval.Interval{ivls[0]}
	for _, ivl := range ivls[1:] {
		last := merged[len(merged)-1]
		if last.Joinable(ivl) {
			merged[len(merged)-1] = last.Hull(ivl)
		} else {
			merged = append(merged, ivl)
		}
	}

	out := make([]Chunk, len(merged))
	for i, ivl := range merged {
		out[i] = Chunk{Paddr: ivl.From, Data: readRec(chunks, ivl)}
	}
	return out
}

// PhysMemory is the physical memory model: an append-only byte store
// backed by a chained bump allocator over the machine's declared free
// memory, plus a dedup map for content-addressed placements.
type PhysMemory struct {
	mem   Memory
	alloc *alloc.Chained
	// dedup maps byte-identical content (by value, keyed on its string
	// form) to the physical address it was first placed at.
	dedup map[string]uint64
}

// New builds a PhysMemory over the given free physical intervals, each
// page-aligned for placement.
func New(free []interval.Interval, pageSize uint64) *PhysMemory {
	backends := make([]alloc.Allocator, len(free))
	for i, ivl := range free {
		backends[i] = alloc.NewBumpFromInterval(ivl, pageSize)
	}
	return &PhysMemory{
		alloc: alloc.NewChained(backends...),
		dedup: make(map[string]uint64),
	}
}

// Write appends bytes at paddr; see Memory.Write.
func (p *PhysMemory) Write(paddr uint64, data []byte) {
	p.mem.Write(paddr, data)
}

// Read returns size bytes starting at paddr; see Memory.Read.
func (p *PhysMemory) Read(paddr, size uint64) []byte {
	return p.mem.Read(paddr, size)
}

// PlaceUnique allocates fresh space for data, writes it, and returns its
// address. It fails if the allocator has no room left.
func (p *PhysMemory) PlaceUnique(data []byte) (uint64, bool) {
	addr, ok := p.alloc.Alloc(uint64(len(data)))
	if !ok {
		return 0, false
	}
	p.mem.Write(addr, data)
	return addr, true
}

// PlaceShareable places data once per distinct byte sequence: repeated
// calls with byte-identical content return the same address without a
// second allocation or write.
func (p *PhysMemory) PlaceShareable(data []byte) (uint64, bool) {
	key := string(data)
	if addr, ok := p.dedup[key]; ok {
		return addr, true
	}
	addr, ok := p.PlaceUnique(data)
	if !ok {
		return 0, false
	}
	p.dedup[key] = addr
	return addr, true
}

// Place dispatches to PlaceUnique or PlaceShareable based on mode.
func (p *PhysMemory) Place(data []byte, mode PlaceMode) (uint64, bool) {
	switch mode {
	case Shareable:
		return p.PlaceShareable(data)
	default:
		return p.PlaceUnique(data)
	}
}

// Chunks returns the minimal, flattened, non-overlapping chunk list in
// ascending paddr order, suitable for serialization by the ELF writer.
func (p *PhysMemory) Chunks() []Chunk {
	return flatten(p.mem.chunks)
}
