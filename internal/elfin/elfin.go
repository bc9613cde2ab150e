// Package elfin reads the input ELF binaries (kernel and user processes)
// the image builder consumes. It wraps the standard library's debug/elf
// reader and exposes only the PT_LOAD segments, symbol table, and entry
// point the rest of the builder needs.
package elfin

import (
	"debug/elf"

	"github.com/epoxyos/harden/internal/buildererr"
)

// Permissions describes the access rights of a memory region.
type Permissions struct {
	Read    bool
	Write   bool
	Execute bool
	User    bool
}

// ReadWrite returns the default permissions for an anonymous data region:
// readable and writable, neither executable nor user-accessible.
func ReadWrite() Permissions {
	return Permissions{Read: true, Write: true}
}

func permissionsFromFlags(flags elf.ProgFlag) Permissions {
	return Permissions{
		Read:    flags&elf.PF_R != 0,
		Write:   flags&elf.PF_W != 0,
		Execute: flags&elf.PF_X != 0,
		// User access is never inferred from the ELF; an unmarked segment
		// must stay kernel-only until something explicitly opts it in.
		User: false,
	}
}

// Segment is one loadable ELF segment with its file contents expanded to
// its full in-memory size (the BSS tail zero-filled).
type Segment struct {
	Permissions Permissions
	Vaddr       uint64
	Paddr       uint64
	Data        []byte
}

// Elf is the subset of an ELF binary the builder cares about.
type Elf struct {
	Entry    uint64
	Segments []Segment
	Symbols  map[string]uint64
}

// Load parses the ELF file at path.
func Load(path string) (*Elf, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, buildererr.Wrapf(buildererr.ElfLoad, err, "opening ELF %q", path)
	}
	defer f.Close()

	segments := make([]Segment, 0, len(f.Progs))
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}

		data, err := segmentData(prog)
		if err != nil {
			return nil, buildererr.Wrapf(buildererr.ElfInvalid, err, "reading segment at vaddr %#x in %q", prog.Vaddr, path)
		}

		segments = append(segments, Segment{
			Permissions: permissionsFromFlags(prog.Flags),
			Vaddr:       prog.Vaddr,
			Paddr:       prog.Paddr,
			Data:        data,
		})
	}

	symbols, err := readSymbols(f)
	if err != nil {
		return nil, buildererr.Wrapf(buildererr.ElfInvalid, err, "reading symbols in %q", path)
	}

	return &Elf{
		Entry:    f.Entry,
		Segments: segments,
		Symbols:  symbols,
	}, nil
}

func segmentData(prog *elf.Prog) ([]byte, error) {
	if prog.Memsz < prog.Filesz {
		return nil, buildererr.Newf(buildererr.ElfInvalid, "invalid ELF segment: filesz %d exceeds memsz %d", prog.Filesz, prog.Memsz)
	}

	fileBytes := make([]byte, prog.Filesz)
	if _, err := prog.ReadAt(fileBytes, 0); err != nil {
		return nil, buildererr.Wrap(buildererr.IO, err, "reading segment file contents")
	}

	out := make([]byte, prog.Memsz)
	copy(out, fileBytes)
	return out, nil
}

func readSymbols(f *elf.File) (map[string]uint64, error) {
	syms, err := f.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, buildererr.Wrap(buildererr.ElfInvalid, err, "parsing symbol table")
	}

	out := make(map[string]uint64, len(syms))
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		out[s.Name] = s.Value
	}
	return out, nil
}
