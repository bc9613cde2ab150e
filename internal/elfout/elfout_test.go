package elfout

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/epoxyos/harden/internal/physmem"
)

func TestWrite64BitHeader(t *testing.T) {
	chunks := []physmem.Chunk{
		{Paddr: 0x80000000, Data: []byte{1, 2, 3, 4}},
		{Paddr: 0x80002000, Data: []byte{5, 6}},
	}

	var buf bytes.Buffer
	if err := Write(&buf, Class64, 0x80000000, chunks); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data := buf.Bytes()
	if !bytes.Equal(data[0:4], []byte{0x7f, 'E', 'L', 'F'}) {
		t.Fatalf("bad ELF magic: %v", data[0:4])
	}
	if data[4] != 2 {
		t.Fatalf("EI_CLASS = %d, want 2 (64-bit)", data[4])
	}
	if data[5] != 1 {
		t.Fatalf("EI_DATA = %d, want 1 (little-endian)", data[5])
	}

	etype := binary.LittleEndian.Uint16(data[16:18])
	if etype != 2 {
		t.Fatalf("e_type = %d, want 2 (ET_EXEC)", etype)
	}
	machine := binary.LittleEndian.Uint16(data[18:20])
	if machine != elfMachineRISCV {
		t.Fatalf("e_machine = %#x, want %#x", machine, elfMachineRISCV)
	}

	entry := binary.LittleEndian.Uint64(data[24:32])
	if entry != 0x80000000 {
		t.Fatalf("e_entry = %#x, want 0x80000000", entry)
	}

	phoff := binary.LittleEndian.Uint64(data[32:40])
	if phoff != ehdrSize64 {
		t.Fatalf("e_phoff = %#x, want %#x", phoff, ehdrSize64)
	}

	phnum := binary.LittleEndian.Uint16(data[56:58])
	if phnum != uint16(len(chunks)) {
		t.Fatalf("e_phnum = %d, want %d", phnum, len(chunks))
	}
}

func TestWriteProgramHeadersAndPayload(t *testing.T) {
	chunks := []physmem.Chunk{
		{Paddr: 0x1000, Data: []byte{0xAA, 0xBB, 0xCC}},
	}

	var buf bytes.Buffer
	if err := Write(&buf, Class64, 0x1000, chunks); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data := buf.Bytes()
	phdrOff := ehdrSize64
	ptype := binary.LittleEndian.Uint32(data[phdrOff : phdrOff+4])
	if ptype != 1 {
		t.Fatalf("p_type = %d, want 1 (PT_LOAD)", ptype)
	}
	flags := binary.LittleEndian.Uint32(data[phdrOff+4 : phdrOff+8])
	if flags != 0x7 {
		t.Fatalf("p_flags = %#x, want 0x7 (RWX)", flags)
	}
	vaddr := binary.LittleEndian.Uint64(data[phdrOff+16 : phdrOff+24])
	if vaddr != 0x1000 {
		t.Fatalf("p_vaddr = %#x, want 0x1000", vaddr)
	}

	payloadOff := int(ehdrSize64) + len(chunks)*phdrEntSize64
	if !bytes.Equal(data[payloadOff:payloadOff+3], []byte{0xAA, 0xBB, 0xCC}) {
		t.Fatalf("payload bytes = %v, want [AA BB CC]", data[payloadOff:payloadOff+3])
	}
}

func TestWrite32BitUsesNarrowAddresses(t *testing.T) {
	chunks := []physmem.Chunk{{Paddr: 0x1000, Data: []byte{1}}}

	var buf bytes.Buffer
	if err := Write(&buf, Class32, 0x1000, chunks); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data := buf.Bytes()
	if data[4] != 1 {
		t.Fatalf("EI_CLASS = %d, want 1 (32-bit)", data[4])
	}
	phoff := binary.LittleEndian.Uint32(data[28:32])
	if uint64(phoff) != ehdrSize32 {
		t.Fatalf("e_phoff = %#x, want %#x", phoff, ehdrSize32)
	}
}
