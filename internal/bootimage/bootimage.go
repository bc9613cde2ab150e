// Package bootimage orchestrates the whole build: it loads every input
// ELF, forms and fixates an address space per process, generates page
// tables, patches the kernel's boot symbols, and flattens the result into
// the chunk list the ELF writer serializes.
package bootimage

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"github.com/epoxyos/harden/internal/addrspace"
	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/elfin"
	"github.com/epoxyos/harden/internal/elfout"
	"github.com/epoxyos/harden/internal/interval"
	"github.com/epoxyos/harden/internal/pagetable"
	"github.com/epoxyos/harden/internal/physmem"
	"github.com/epoxyos/harden/internal/runtypes"
)

// Boot symbol names the kernel binary must export.
const (
	symBootSatp  = "BOOT_SATP"
	symUserSatps = "USER_SATPS"
	symUserPCs   = "USER_PCS"
)

// Result is the finished image: the physical chunk list the ELF writer
// serializes, its entry point, and the ELF class to emit it as.
type Result struct {
	Chunks []physmem.Chunk
	Entry  uint64
	Class  elfout.Class
}

// classForFormat returns the ELF class that matches a page-table format:
// Sv32 addresses fit in 32 bits, Sv39 needs 64.
func classForFormat(format pagetable.Format) elfout.Class {
	if format.EntryBytes == 4 {
		return elfout.Class32
	}
	return elfout.Class64
}

// Build runs the full orchestration pipeline described for the boot-image
// command: kernelPath is the kernel ELF; userBinaries maps each resolved
// process's name to the filesystem path of its ELF (falling back to the
// configuration's own Process.Binary when a process is not present in the
// map, so callers may override only the binaries they need to). log may be
// nil, in which case progress is not reported.
func Build(cfg *runtypes.Configuration, format pagetable.Format, kernelPath string, userBinaries map[string]string, log *logrus.Logger) (*Result, error) {
	kernelElf, err := elfin.Load(kernelPath)
	if err != nil {
		return nil, err
	}

	procElfs := make(map[string]*elfin.Elf, len(cfg.Processes))
	for _, name := range cfg.Processes.SortedNames() {
		path := cfg.Processes[name].Binary
		if override, ok := userBinaries[name]; ok {
			path = override
		}
		e, err := elfin.Load(path)
		if err != nil {
			return nil, err
		}
		procElfs[name] = e
	}

	return buildFromElfs(cfg, format, kernelElf, procElfs, log)
}

// buildFromElfs is Build's core logic, taking already-loaded ELFs so it
// can be exercised without touching the filesystem.
func buildFromElfs(cfg *runtypes.Configuration, format pagetable.Format, kernelElf *elfin.Elf, procElfs map[string]*elfin.Elf, log *logrus.Logger) (*Result, error) {
	free := make([]interval.Interval, len(cfg.AvailableMemory))
	for i, r := range cfg.AvailableMemory {
		free[i] = interval.NewWithSize(r.Start, r.Size)
	}
	pmem := physmem.New(free, addrspace.PageSize)

	kernelAS := addrspace.FromElf(kernelElf)
	addResourceMappings(kernelAS, cfg.Kernel.Resources)

	fixatedKernel, err := kernelAS.Fixated(pmem)
	if err != nil {
		return nil, err
	}
	logDebugf(log, "kernel address space fixated, entry %#x", kernelElf.Entry)

	names := cfg.Processes.SortedNames()
	rootTokens := make([]uint64, 0, len(names))
	entries := make([]uint64, 0, len(names))

	for _, name := range names {
		proc := cfg.Processes[name]
		procElf := procElfs[name]

		as := addrspace.FromElf(procElf)
		addAnonMappings(as, proc.AnonMem)
		addResourceMappings(as, proc.Resources)
		as.MakeUser()
		as.MergeFrom(fixatedKernel)

		fixated, err := as.Fixated(pmem)
		if err != nil {
			return nil, err
		}
		logDebugf(log, "process %q address space fixated, entry %#x", name, procElf.Entry)

		root, err := pagetable.Generate(format, fixated, pmem)
		if err != nil {
			return nil, err
		}
		logDebugf(log, "process %q page table generated, root token %#x", name, root)

		rootTokens = append(rootTokens, root)
		entries = append(entries, procElf.Entry)
	}

	if err := patchBootSymbols(pmem, fixatedKernel, kernelElf.Symbols, rootTokens, entries); err != nil {
		return nil, err
	}
	logDebugf(log, "boot symbols patched for %d user process(es)", len(names))

	entryPhys, ok := fixatedKernel.LookupPhys(kernelElf.Entry)
	if !ok {
		return nil, buildererr.Newf(buildererr.SymbolMissing, "kernel entry point %#x does not resolve to a mapped physical address", kernelElf.Entry)
	}

	return &Result{
		Chunks: pmem.Chunks(),
		Entry:  entryPhys,
		Class:  classForFormat(format),
	}, nil
}

// logDebugf logs at debug level when log is non-nil, a no-op otherwise.
func logDebugf(log *logrus.Logger, format string, args ...interface{}) {
	if log != nil {
		log.Debugf(format, args...)
	}
}

// addAnonMappings adds a process's anonymous stack/heap regions as
// zero-initialized, page-aligned, read-write mappings.
func addAnonMappings(as *addrspace.AddressSpace, regions []runtypes.VirtualMemoryRegion) {
	for _, r := range regions {
		m := addrspace.Mapping{
			Vaddr:   r.VirtStart,
			Perm:    addrspace.ReadWrite(),
			Backing: addrspace.Initialized{Data: make([]byte, r.Size())},
		}
		as.Add(m.PageAligned())
	}
}

// addResourceMappings adds a process's device-backed resources. Device
// MMIO is identity-mapped and already physically fixed, so these mappings
// start out Placed and pass through Fixate unchanged.
func addResourceMappings(as *addrspace.AddressSpace, resources runtypes.ResourceMap) {
	for _, res := range resources {
		if !res.HasRegion {
			continue
		}
		as.Add(addrspace.Mapping{
			Vaddr: res.Region.VirtStart,
			Perm:  addrspace.ReadWrite(),
			Backing: addrspace.Placed{
				Phys:  res.Region.Phys.Start,
				Bytes: res.Region.Phys.Size,
			},
		})
	}
}

// patchBootSymbols resolves BOOT_SATP, USER_SATPS, and USER_PCS in the
// fixated kernel address space and writes their values into pmem.
func patchBootSymbols(pmem *physmem.PhysMemory, kernel *addrspace.AddressSpace, symbols map[string]uint64, rootTokens, entries []uint64) error {
	if len(rootTokens) == 0 {
		return buildererr.New(buildererr.SymbolMissing, "no user processes: BOOT_SATP has no root token to patch")
	}

	if err := patchSymbol(pmem, kernel, symbols, symBootSatp, encodeU64s(rootTokens[:1])); err != nil {
		return err
	}
	if err := patchSymbol(pmem, kernel, symbols, symUserSatps, encodeU64s(rootTokens)); err != nil {
		return err
	}
	if err := patchSymbol(pmem, kernel, symbols, symUserPCs, encodeU64s(entries)); err != nil {
		return err
	}
	return nil
}

func patchSymbol(pmem *physmem.PhysMemory, kernel *addrspace.AddressSpace, symbols map[string]uint64, name string, data []byte) error {
	vaddr, ok := symbols[name]
	if !ok {
		return buildererr.Newf(buildererr.SymbolMissing, "kernel binary does not export required symbol %q", name)
	}
	phys, ok := kernel.LookupPhys(vaddr)
	if !ok {
		return buildererr.Newf(buildererr.SymbolMissing, "symbol %q at %#x is not backed by a mapped region", name, vaddr)
	}
	pmem.Write(phys, data)
	return nil
}

func encodeU64s(vs []uint64) []byte {
	out := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(out[i*8:], v)
	}
	return out
}
