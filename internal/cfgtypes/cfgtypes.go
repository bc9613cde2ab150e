// Package cfgtypes holds the declarative record shapes loaded straight
// from TOML configuration files. These are not meant to be modified after
// loading; internal/runtypes resolves them into the builder's working
// representation.
package cfgtypes

// PixelFormat is a supported framebuffer pixel encoding.
type PixelFormat string

// R5G6B5 is presently the only pixel format the code generator supports.
const R5G6B5 PixelFormat = "r5g6b5"

// FramebufferFormat describes a framebuffer's dimensions and encoding.
type FramebufferFormat struct {
	Height uint32      `toml:"height"`
	Width  uint32      `toml:"width"`
	Stride uint32      `toml:"stride"`
	Pixel  PixelFormat `toml:"pixel"`
}

// MemoryRegion is a physical range declared in a machine description.
type MemoryRegion struct {
	Start uint64 `toml:"start"`
	Size  uint64 `toml:"size"`
}

// ResourceType names a device kind without its parameters, used in an
// application's needs list.
type ResourceType string

const (
	Framebuffer ResourceType = "framebuffer"
	SiFivePLIC  ResourceType = "sifive_plic"
	SBITimer    ResourceType = "sbi_timer"
)

// Resource is one concrete device declared on a machine. Which of the
// type-specific fields are populated is selected by Type.
type Resource struct {
	Type ResourceType `toml:"type"`

	// Populated when Type == Framebuffer.
	Framebuffer FramebufferFormat `toml:"framebuffer"`
	// Populated when Type == Framebuffer or Type == SiFivePLIC.
	Region MemoryRegion `toml:"region"`

	// Populated when Type == SiFivePLIC.
	NDev uint16 `toml:"ndev"`

	// Populated when Type == SBITimer.
	FreqHz uint64 `toml:"freq_hz"`
}

// NamedResource is a device a machine exposes under a local name.
type NamedResource struct {
	Name     string   `toml:"name"`
	Resource Resource `toml:"resource"`
}

// NamedResourceType is a need an application declares, to be resolved
// against a machine's devices through the system's mapping list.
type NamedResourceType struct {
	Name string       `toml:"name"`
	Type ResourceType `toml:"type"`
}

// Machine describes a target board: its free memory and its devices.
type Machine struct {
	Name            string          `toml:"name"`
	AvailableMemory []MemoryRegion  `toml:"available_memory"`
	Devices         []NamedResource `toml:"devices"`
}

// Application describes a program's resource needs and heap size.
type Application struct {
	Name     string              `toml:"name"`
	Needs    []NamedResourceType `toml:"needs"`
	Binary   string              `toml:"binary"`
	HeapSize uint64              `toml:"heap_size"`
}

// Process names one application instance within a system.
type Process struct {
	Name    string `toml:"name"`
	Program string `toml:"program"`
}

// Mapping resolves a process's declared need to a machine device. To is
// conventionally "<process>.<need>"; From names a machine device.
type Mapping struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// System ties a machine, a kernel, a process list, and their resource
// mappings together into one buildable configuration.
type System struct {
	Name      string    `toml:"name"`
	Machine   string    `toml:"machine"`
	Kernel    string    `toml:"kernel"`
	Processes []Process `toml:"processes"`
	Mappings  []Mapping `toml:"mappings"`
}
