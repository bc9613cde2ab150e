// Package addrspace implements the architecture-neutral address space
// algebra: backings, page-aligned mappings, and the ordered mapping list
// that gets fixated into physical memory and published to user mode.
package addrspace

import (
	"fmt"

	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/elfin"
	"github.com/epoxyos/harden/internal/interval"
	"github.com/epoxyos/harden/internal/physmem"
)

// PageSize is the hardware page size every mapping is aligned to.
const PageSize = 4096

// Permissions is an alias of the ELF reader's permission set, re-exported
// so callers of this package never need to import elfin directly.
type Permissions = elfin.Permissions

// ReadWrite returns default data-region permissions.
func ReadWrite() Permissions {
	return elfin.ReadWrite()
}

// Backing is the content source of a mapping: either bytes not yet
// placed in physical memory, or an already-placed physical range.
type Backing interface {
	// Size returns the backing's length in bytes.
	Size() uint64
	extended(n uint64) Backing
	fmt.Stringer
}

// Initialized is pre-placement content: the physical location is not yet
// decided.
type Initialized struct {
	Data []byte
}

func (b Initialized) Size() uint64 { return uint64(len(b.Data)) }

func (b Initialized) extended(n uint64) Backing {
	out := make([]byte, len(b.Data)+int(n))
	copy(out, b.Data)
	return Initialized{Data: out}
}

func (b Initialized) String() string {
	return fmt.Sprintf("<%#x bytes>", len(b.Data))
}

// prepend returns a backing grown by n bytes at the front: n zero bytes
// before the content for Initialized, or a physical range whose start
// moves down by n for Placed.
func prepend(b Backing, n uint64) Backing {
	switch v := b.(type) {
	case Initialized:
		out := make([]byte, n, n+uint64(len(v.Data)))
		out = append(out, v.Data...)
		return Initialized{Data: out}
	case Placed:
		return Placed{Phys: v.Phys - n, Bytes: v.Bytes + n}
	default:
		panic("addrspace: unknown backing kind")
	}
}

// Placed is content already assigned a physical range. The field is
// named Bytes rather than Size because Go does not allow a field and a
// method to share a name, and Backing requires a Size() method.
type Placed struct {
	Phys  uint64
	Bytes uint64
}

// Size implements Backing.
func (b Placed) Size() uint64 { return b.Bytes }

func (b Placed) extended(n uint64) Backing {
	return Placed{Phys: b.Phys, Bytes: b.Bytes + n}
}

func (b Placed) String() string {
	return fmt.Sprintf("<Phys %#x+%#x>", b.Phys, b.Bytes)
}

// Mapping is one virtual segment with its permissions and backing.
type Mapping struct {
	Vaddr   uint64
	Perm    Permissions
	Backing Backing
}

// Size returns the mapping's backing size.
func (m Mapping) Size() uint64 {
	return m.Backing.Size()
}

// VirtIvl returns the virtual address interval covered by the mapping.
func (m Mapping) VirtIvl() interval.Interval {
	return interval.NewWithSize(m.Vaddr, m.Size())
}

// PageAligned returns a page-aligned copy of m. Space added to satisfy
// alignment is zero-padded for Initialized backings, or extends the
// physical range (moving its start down) for Placed backings — callers
// are responsible for that physical space actually being free.
func (m Mapping) PageAligned() Mapping {
	offset := m.Vaddr % PageSize
	padBytes := (PageSize - ((m.Size() + offset) % PageSize)) % PageSize

	backing := m.Backing
	if offset != 0 {
		backing = prepend(backing, offset)
	}
	if padBytes != 0 {
		backing = backing.extended(padBytes)
	}

	return Mapping{
		Vaddr:   m.Vaddr - offset,
		Perm:    m.Perm,
		Backing: backing,
	}
}

// FromElf builds an address space from an ELF binary's loadable segments,
// ignoring their physical addresses. Each segment becomes a page-aligned
// Initialized mapping.
func FromElf(e *elfin.Elf) *AddressSpace {
	as := &AddressSpace{}
	for _, s := range e.Segments {
		m := Mapping{
			Vaddr:   s.Vaddr,
			Perm:    s.Permissions,
			Backing: Initialized{Data: append([]byte(nil), s.Data...)},
		}
		as.Add(m.PageAligned())
	}
	return as
}

// AddressSpace is an ordered list of mappings. Order is insertion order
// and is preserved through every transformation; lookup returns the
// first matching mapping, so later additions only shadow earlier ones if
// the caller arranges the insertion order accordingly.
type AddressSpace struct {
	mappings []Mapping
}

// Mappings returns the address space's mappings in order.
func (as *AddressSpace) Mappings() []Mapping {
	return as.mappings
}

// Add appends a mapping.
func (as *AddressSpace) Add(m Mapping) {
	as.mappings = append(as.mappings, m)
}

// Extend appends every mapping produced by ms.
func (as *AddressSpace) Extend(ms []Mapping) {
	as.mappings = append(as.mappings, ms...)
}

// Lookup returns the physical address and permissions for vaddr, using
// the first mapping whose virtual interval contains it. It fails if the
// address is unmapped or the matching mapping is not yet fixated.
func (as *AddressSpace) Lookup(vaddr uint64) (uint64, Permissions, bool) {
	for _, m := range as.mappings {
		if !m.VirtIvl().Contains(vaddr) {
			continue
		}
		placed, ok := m.Backing.(Placed)
		if !ok {
			return 0, Permissions{}, false
		}
		offset := vaddr - m.Vaddr
		return placed.Phys + offset, m.Perm, true
	}
	return 0, Permissions{}, false
}

// LookupPhys is Lookup without the permissions.
func (as *AddressSpace) LookupPhys(vaddr uint64) (uint64, bool) {
	phys, _, ok := as.Lookup(vaddr)
	return phys, ok
}

// HasMappingsInRange reports whether any mapping intersects ivl.
func (as *AddressSpace) HasMappingsInRange(ivl interval.Interval) bool {
	for _, m := range as.mappings {
		if m.VirtIvl().Intersects(ivl) {
			return true
		}
	}
	return false
}

// MergeFrom appends other's mappings after self's. The typical use is
// appending the fixated kernel address space to a user address space
// after publication to user mode, so kernel mappings retain user=false.
func (as *AddressSpace) MergeFrom(other *AddressSpace) {
	as.Extend(other.mappings)
}

// MakeUser sets user=true on every mapping.
func (as *AddressSpace) MakeUser() {
	for i := range as.mappings {
		as.mappings[i].Perm.User = true
	}
}

// Fixate replaces every Initialized backing with a Placed one by writing
// its bytes into pmem: writable mappings get a unique placement, read-only
// ones a shareable (deduplicated) one. Already-placed mappings pass
// through unchanged. Fixation is not atomic: on failure, mappings handled
// before the failing one are already placed, and the address space must
// be discarded.
func (as *AddressSpace) Fixate(pmem *physmem.PhysMemory) error {
	for i, m := range as.mappings {
		init, ok := m.Backing.(Initialized)
		if !ok {
			continue
		}

		mode := physmem.Shareable
		if m.Perm.Write {
			mode = physmem.Unique
		}

		addr, ok := pmem.Place(init.Data, mode)
		if !ok {
			return buildererr.Newf(buildererr.PhysicalExhausted, "unable to fixate initialized data section at %#x in memory", m.Vaddr)
		}

		as.mappings[i].Backing = Placed{Phys: addr, Bytes: uint64(len(init.Data))}
	}
	return nil
}

// Fixated returns a fixated copy of as, leaving as itself untouched.
func (as *AddressSpace) Fixated(pmem *physmem.PhysMemory) (*AddressSpace, error) {
	copy := &AddressSpace{mappings: append([]Mapping(nil), as.mappings...)}
	if err := copy.Fixate(pmem); err != nil {
		return nil, err
	}
	return copy, nil
}
