// Package pagetable generates RISC-V Sv32 and Sv39 page tables from a
// fixated address space. Every page-table page is itself placed into
// physical memory as a shareable chunk, since its contents are a pure
// function of the address space.
package pagetable

import (
	"encoding/binary"

	"github.com/epoxyos/harden/internal/addrspace"
	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/physmem"
)

// Permission flag bits, shared by leaf and inner entries.
const (
	FlagV uint64 = 1 << 0 // valid
	FlagR uint64 = 1 << 1 // readable
	FlagW uint64 = 1 << 2 // writable
	FlagX uint64 = 1 << 3 // executable
	FlagU uint64 = 1 << 4 // user-accessible
	FlagA uint64 = 1 << 6 // accessed
	FlagD uint64 = 1 << 7 // dirty
)

// Format describes one page-table encoding.
type Format struct {
	Name         string
	BitsPerLevel uint
	Levels       uint
	EntryBytes   uint // 4 for Sv32, 8 for Sv39
}

func (f Format) numEntries() int {
	return 1 << f.BitsPerLevel
}

// Sv32 is the 2-level, 32-bit-entry RISC-V page-table format.
var Sv32 = Format{Name: "Sv32", BitsPerLevel: 10, Levels: 2, EntryBytes: 4}

// Sv39 is the 3-level, 64-bit-entry RISC-V page-table format.
var Sv39 = Format{Name: "Sv39", BitsPerLevel: 9, Levels: 3, EntryBytes: 8}

const pageSize = addrspace.PageSize

// Generate builds the full page-table tree for as in the given format and
// returns its root token, ready to be written into a SATP-style register
// field.
func Generate(format Format, as *addrspace.AddressSpace, pmem *physmem.PhysMemory) (uint64, error) {
	root, present, err := buildLevel(format, format.Levels-1, 0, as, pmem)
	if err != nil {
		return 0, err
	}
	if !present {
		return 0, buildererr.New(buildererr.PageTableOverflow, "address space produced an empty page table")
	}
	return rootToken(format, root)
}

// buildLevel recursively constructs one page-table page covering the
// virtual range starting at vbase, returning its physical address and
// whether it has any non-zero entry (an all-zero page is omitted and its
// physical address is never placed).
func buildLevel(format Format, level uint, vbase uint64, as *addrspace.AddressSpace, pmem *physmem.PhysMemory) (uint64, bool, error) {
	n := format.numEntries()
	entries := make([]uint64, n)
	anyPresent := false

	for i := 0; i < n; i++ {
		var entry uint64
		var present bool
		var err error

		if level == 0 {
			entry, present, err = leafEntry(format, vbase+uint64(i)*pageSize, as)
		} else {
			childVbase := vbase + (uint64(i) << (12 + uint(level)*format.BitsPerLevel))
			entry, present, err = innerEntry(format, level, childVbase, as, pmem)
		}
		if err != nil {
			return 0, false, err
		}
		if present {
			anyPresent = true
			entries[i] = entry
		}
	}

	if !anyPresent {
		return 0, false, nil
	}

	page := serialize(format, entries)
	addr, ok := pmem.PlaceShareable(page)
	if !ok {
		return 0, false, buildererr.New(buildererr.PhysicalExhausted, "no room to place page table page")
	}
	return addr, true, nil
}

func leafEntry(format Format, vaddr uint64, as *addrspace.AddressSpace) (uint64, bool, error) {
	phys, perm, ok := as.Lookup(vaddr)
	if !ok {
		return 0, false, nil
	}

	flags := FlagV | FlagA | FlagD
	if perm.Read {
		flags |= FlagR
	}
	if perm.Write {
		flags |= FlagW
	}
	if perm.Execute {
		flags |= FlagX
	}
	if perm.User {
		flags |= FlagU
	}

	entry, err := encodeEntry(format, phys, flags, buildererr.PageTableOverflow)
	if err != nil {
		return 0, false, err
	}
	return entry, true, nil
}

func innerEntry(format Format, level uint, childVbase uint64, as *addrspace.AddressSpace, pmem *physmem.PhysMemory) (uint64, bool, error) {
	childPhys, present, err := buildLevel(format, level-1, childVbase, as, pmem)
	if err != nil {
		return 0, false, err
	}
	if !present {
		return 0, false, nil
	}

	entry, err := encodeEntry(format, childPhys, FlagV, buildererr.PageTableOverflow)
	if err != nil {
		return 0, false, err
	}
	return entry, true, nil
}

// encodeEntry packs phys (shifted right by 2) with flags into the entry
// width of format. Sv32's 32-bit entries cannot represent every 64-bit
// physical address; that case fails with kind.
func encodeEntry(format Format, phys uint64, flags uint64, kind buildererr.Kind) (uint64, error) {
	entry := (phys >> 2) | flags
	if format.EntryBytes == 4 && entry > 0xFFFFFFFF {
		return 0, buildererr.Newf(kind, "physical address %#x not mappable in Sv32", phys)
	}
	return entry, nil
}

func serialize(format Format, entries []uint64) []byte {
	out := make([]byte, len(entries)*int(format.EntryBytes))
	for i, e := range entries {
		off := i * int(format.EntryBytes)
		if format.EntryBytes == 4 {
			binary.LittleEndian.PutUint32(out[off:], uint32(e))
		} else {
			binary.LittleEndian.PutUint64(out[off:], e)
		}
	}
	return out
}

// rootToken encodes the root page-table's physical address and the
// format's mode selector into a single SATP-style token.
func rootToken(format Format, root uint64) (uint64, error) {
	switch format.Name {
	case "Sv32":
		shifted := root >> 12
		if shifted > 0x7FFFFFFF {
			return 0, buildererr.Newf(buildererr.PageTableOverflow, "Sv32 root %#x not representable", root)
		}
		return shifted | (1 << 31), nil
	case "Sv39":
		return (root >> 12) | (8 << 60), nil
	default:
		return 0, buildererr.Newf(buildererr.PageTableOverflow, "unknown page table format %q", format.Name)
	}
}
