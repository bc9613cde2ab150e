// Package elfout writes the final bootable image: one ELF file header,
// one PT_LOAD program header per physical memory chunk, then each
// chunk's payload bytes in order. No section headers are emitted.
package elfout

import (
	"io"

	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/physmem"
)

// Class selects the width of addresses, offsets, and sizes in the
// headers: Class32 for Sv32 systems, Class64 for Sv39.
type Class int

const (
	Class32 Class = iota
	Class64
)

const (
	elfMachineRISCV = 0xF3
	phdrEntSize32   = 0x20
	phdrEntSize64   = 0x38
	ehdrSize32      = 0x34
	ehdrSize64      = 0x40
)

// out is a small little-endian byte-buffer writer: Write appends a single
// byte, WriteN repeats one byte n times, and the WriteN-sized helpers below
// append multi-byte little-endian integers without any alignment padding.
type out struct {
	buf []byte
}

func (o *out) Write(b uint8) {
	o.buf = append(o.buf, b)
}

func (o *out) WriteN(b uint8, n int) {
	for i := 0; i < n; i++ {
		o.Write(b)
	}
}

func (o *out) Write2(v uint16) {
	o.Write(uint8(v))
	o.Write(uint8(v >> 8))
}

func (o *out) Write4(v uint32) {
	o.Write2(uint16(v))
	o.Write2(uint16(v >> 16))
}

func (o *out) Write8(v uint64) {
	o.Write4(uint32(v))
	o.Write4(uint32(v >> 32))
}

// WriteAddr writes v at the configured class's width.
func (o *out) WriteAddr(class Class, v uint64) {
	if class == Class32 {
		o.Write4(uint32(v))
	} else {
		o.Write8(v)
	}
}

func ehdrSize(class Class) uint64 {
	if class == Class32 {
		return ehdrSize32
	}
	return ehdrSize64
}

func phdrEntSize(class Class) uint64 {
	if class == Class32 {
		return phdrEntSize32
	}
	return phdrEntSize64
}

// Write serializes chunks into a bootable ELF image at the given class,
// with entry as the physical entry point, and writes it to w.
func Write(w io.Writer, class Class, entry uint64, chunks []physmem.Chunk) error {
	o := &out{}

	ehdrLen := ehdrSize(class)
	phdrLen := phdrEntSize(class)
	phdrTableOff := ehdrLen
	numPhdrs := len(chunks)

	o.Write(0x7f)
	o.Write('E')
	o.Write('L')
	o.Write('F')
	if class == Class32 {
		o.Write(1)
	} else {
		o.Write(2)
	}
	o.Write(1) // little-endian
	o.Write(1) // ELF version
	o.Write(0) // System-V ABI
	o.WriteN(0, 8)

	o.Write2(2) // ET_EXEC
	o.Write2(elfMachineRISCV)
	o.Write4(1) // original ELF version

	o.WriteAddr(class, entry)
	o.WriteAddr(class, phdrTableOff) // e_phoff
	o.WriteAddr(class, 0)            // e_shoff: no section headers

	o.Write4(0) // e_flags
	o.Write2(uint16(ehdrLen))
	o.Write2(uint16(phdrLen))
	o.Write2(uint16(numPhdrs))
	o.Write2(0) // e_shentsize
	o.Write2(0) // e_shnum
	o.Write2(0) // e_shstrndx

	dataOff := phdrTableOff + uint64(numPhdrs)*phdrLen
	for _, c := range chunks {
		writeProgramHeader(o, class, c, dataOff)
		dataOff += uint64(len(c.Data))
	}

	for _, c := range chunks {
		o.buf = append(o.buf, c.Data...)
	}

	if _, err := w.Write(o.buf); err != nil {
		return buildererr.Wrap(buildererr.IO, err, "writing ELF image")
	}
	return nil
}

func writeProgramHeader(o *out, class Class, c physmem.Chunk, fileOff uint64) {
	size := uint64(len(c.Data))
	const rwx = 0x7

	if class == Class32 {
		o.Write4(1) // PT_LOAD
		o.Write4(uint32(fileOff))
		o.Write4(uint32(c.Paddr))
		o.Write4(uint32(c.Paddr))
		o.Write4(uint32(size))
		o.Write4(uint32(size))
		o.Write4(rwx)
		o.Write4(1) // alignment
		return
	}

	o.Write4(1)   // PT_LOAD
	o.Write4(rwx) // flags come before the offset field in the 64-bit layout
	o.Write8(fileOff)
	o.Write8(c.Paddr)
	o.Write8(c.Paddr)
	o.Write8(size)
	o.Write8(size)
	o.Write8(1) // alignment
}
