// Package runtypes holds the resolved configuration: cfgtypes records
// with every "P.N" resource need resolved against a machine's devices,
// and every process given a concrete virtual layout for its anonymous
// stack and heap regions. This is what the boot-image orchestrator
// actually builds address spaces from.
package runtypes

import (
	"sort"

	"github.com/epoxyos/harden/internal/alloc"
	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/cfgtypes"
)

// Default virtual layout constants for anonymous regions. These are an
// implementation choice the declarative config is silent on: device
// resources are identity-mapped (virt == phys) so we never run out of
// address space for MMIO, while the heap and stack get a dedicated
// per-process virtual window above any realistic ELF load address.
const (
	AnonVirtBase = 0x80000000
	StackSize    = 0x10000
)

// MemoryRegionKind distinguishes the two closed variants of MemoryRegion.
type MemoryRegionKind int

const (
	AnonymousZeroes MemoryRegionKind = iota
	Phys
)

// MemoryRegion is either a not-yet-backed anonymous region or a fixed
// physical range (e.g. device MMIO).
type MemoryRegion struct {
	Kind  MemoryRegionKind
	Size  uint64
	Start uint64 // meaningful only when Kind == Phys
}

// VirtualMemoryRegion is a memory mapping in a process: a virtual start
// address plus the physical backing it maps to (or will be backed by).
type VirtualMemoryRegion struct {
	VirtStart uint64
	Phys      MemoryRegion
}

// Size returns the region's size.
func (v VirtualMemoryRegion) Size() uint64 {
	return v.Phys.Size
}

// ResourceMetaInfoKind distinguishes the closed set of device kinds.
type ResourceMetaInfoKind int

const (
	MetaFramebuffer ResourceMetaInfoKind = iota
	MetaSifivePlic
	MetaSBITimer
)

// ResourceMetaInfo is one device's kind-specific metadata.
type ResourceMetaInfo struct {
	Kind ResourceMetaInfoKind

	// Populated when Kind == MetaFramebuffer.
	Format cfgtypes.FramebufferFormat

	// Populated when Kind == MetaSifivePlic.
	NDev uint16

	// Populated when Kind == MetaSBITimer.
	FreqHz uint64
}

// Resource is a system resource: its metadata plus an optional memory
// mapping (some resources, like a timer accessed purely through SBI
// calls, have no associated memory region).
type Resource struct {
	Meta      ResourceMetaInfo
	HasRegion bool
	Region    VirtualMemoryRegion
}

// ResourceMap maps a process's locally-named need to its resolved Resource.
type ResourceMap map[string]Resource

// Process is a resolved process: its binary, its assigned resources, and
// its anonymous memory layout.
type Process struct {
	Name    string
	Binary  string
	Resources ResourceMap

	AnonMem []VirtualMemoryRegion

	StackPtr  uint64
	HeapStart uint64
	HeapEnd   uint64
}

// ProcessMap maps process name to its resolved Process.
type ProcessMap map[string]Process

// SortedNames returns the map's keys in ascending order, the iteration
// order every deterministic pass over a ProcessMap must use.
func (pm ProcessMap) SortedNames() []string {
	names := make([]string, 0, len(pm))
	for name := range pm {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configuration is a fully resolved system: its free memory, its kernel,
// and its user processes.
type Configuration struct {
	Name            string
	AvailableMemory []cfgtypes.MemoryRegion
	Kernel          Process
	Processes       ProcessMap
}

// Resolve builds a Configuration from a system, its machine, and the
// application record for each process's program. apps is keyed by
// cfgtypes.Process.Program, the name each process refers to its
// application by.
func Resolve(sys *cfgtypes.System, machine *cfgtypes.Machine, apps map[string]*cfgtypes.Application) (*Configuration, error) {
	cfg := &Configuration{
		Name:            sys.Name,
		AvailableMemory: machine.AvailableMemory,
		Kernel:          Process{Name: "kernel", Binary: sys.Kernel},
		Processes:       make(ProcessMap, len(sys.Processes)),
	}

	for _, p := range sys.Processes {
		app, ok := apps[p.Program]
		if !ok {
			return nil, buildererr.Newf(buildererr.MappingUnresolved, "process %q references unknown application %q", p.Name, p.Program)
		}

		proc, err := resolveProcess(p, app, sys, machine)
		if err != nil {
			return nil, err
		}
		cfg.Processes[p.Name] = *proc
	}

	return cfg, nil
}

func resolveProcess(p cfgtypes.Process, app *cfgtypes.Application, sys *cfgtypes.System, machine *cfgtypes.Machine) (*Process, error) {
	resources := make(ResourceMap, len(app.Needs))

	for _, need := range app.Needs {
		res, err := resolveNeed(p.Name, need, sys, machine)
		if err != nil {
			return nil, err
		}
		resources[need.Name] = *res
	}

	virt := alloc.NewBump(AnonVirtBase, AnonVirtBase+(1<<32), 4096)

	heapStart, ok := virt.Alloc(app.HeapSize)
	if !ok {
		return nil, buildererr.Newf(buildererr.VirtualExhausted, "process %q: no virtual space for a %#x byte heap", p.Name, app.HeapSize)
	}
	heapEnd := heapStart + app.HeapSize

	stackStart, ok := virt.Alloc(StackSize)
	if !ok {
		return nil, buildererr.Newf(buildererr.VirtualExhausted, "process %q: no virtual space for a %#x byte stack", p.Name, uint64(StackSize))
	}

	anon := []VirtualMemoryRegion{
		{VirtStart: heapStart, Phys: MemoryRegion{Kind: AnonymousZeroes, Size: app.HeapSize}},
		{VirtStart: stackStart, Phys: MemoryRegion{Kind: AnonymousZeroes, Size: StackSize}},
	}

	return &Process{
		Name:      p.Name,
		Binary:    app.Binary,
		Resources: resources,
		AnonMem:   anon,
		StackPtr:  stackStart + StackSize,
		HeapStart: heapStart,
		HeapEnd:   heapEnd,
	}, nil
}

// resolveNeed finds the mapping satisfying process P's need N ("P.N" on
// the To side), then the machine device it names on the From side.
func resolveNeed(processName string, need cfgtypes.NamedResourceType, sys *cfgtypes.System, machine *cfgtypes.Machine) (*Resource, error) {
	wantTo := processName + "." + need.Name

	var deviceName string
	found := false
	for _, m := range sys.Mappings {
		if m.To == wantTo {
			deviceName = m.From
			found = true
			break
		}
	}
	if !found {
		return nil, buildererr.Newf(buildererr.MappingUnresolved, "process %q need %q has no mapping", processName, need.Name)
	}

	for _, dev := range machine.Devices {
		if dev.Name != deviceName {
			continue
		}
		if dev.Resource.Type != need.Type {
			return nil, buildererr.Newf(buildererr.MappingUnresolved, "device %q is of type %q, need %q requires %q", deviceName, dev.Resource.Type, need.Name, need.Type)
		}
		return resourceFromConfig(dev.Resource)
	}

	return nil, buildererr.Newf(buildererr.MappingUnresolved, "mapping for %q references unknown device %q", wantTo, deviceName)
}

func resourceFromConfig(r cfgtypes.Resource) (*Resource, error) {
	switch r.Type {
	case cfgtypes.Framebuffer:
		region := MemoryRegion{Kind: Phys, Start: r.Region.Start, Size: r.Region.Size}
		return &Resource{
			Meta:      ResourceMetaInfo{Kind: MetaFramebuffer, Format: r.Framebuffer},
			HasRegion: true,
			// Device MMIO is identity-mapped: the process sees the same
			// address the hardware decodes at.
			Region: VirtualMemoryRegion{VirtStart: r.Region.Start, Phys: region},
		}, nil
	case cfgtypes.SiFivePLIC:
		region := MemoryRegion{Kind: Phys, Start: r.Region.Start, Size: r.Region.Size}
		return &Resource{
			Meta:      ResourceMetaInfo{Kind: MetaSifivePlic, NDev: r.NDev},
			HasRegion: true,
			Region:    VirtualMemoryRegion{VirtStart: r.Region.Start, Phys: region},
		}, nil
	case cfgtypes.SBITimer:
		// Accessed purely through SBI calls: no memory mapping.
		return &Resource{
			Meta:      ResourceMetaInfo{Kind: MetaSBITimer, FreqHz: r.FreqHz},
			HasRegion: false,
		}, nil
	default:
		return nil, buildererr.Newf(buildererr.MappingUnresolved, "unknown resource type %q", r.Type)
	}
}
