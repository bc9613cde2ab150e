package runtypes

import (
	"testing"

	"github.com/epoxyos/harden/internal/cfgtypes"
)

func testMachine() *cfgtypes.Machine {
	return &cfgtypes.Machine{
		Name:            "qemu",
		AvailableMemory: []cfgtypes.MemoryRegion{{Start: 0x80000000, Size: 0x1000000}},
		Devices: []cfgtypes.NamedResource{
			{
				Name: "fb0",
				Resource: cfgtypes.Resource{
					Type:        cfgtypes.Framebuffer,
					Framebuffer: cfgtypes.FramebufferFormat{Height: 2, Width: 2, Stride: 4, Pixel: cfgtypes.R5G6B5},
					Region:      cfgtypes.MemoryRegion{Start: 0x10000000, Size: 0x1000},
				},
			},
		},
	}
}

func testSystem() *cfgtypes.System {
	return &cfgtypes.System{
		Name:      "demo",
		Machine:   "qemu",
		Kernel:    "kernel.elf",
		Processes: []cfgtypes.Process{{Name: "shell", Program: "shell-app"}},
		Mappings:  []cfgtypes.Mapping{{From: "fb0", To: "shell.screen"}},
	}
}

func testApps() map[string]*cfgtypes.Application {
	return map[string]*cfgtypes.Application{
		"shell-app": {
			Name:     "shell-app",
			Needs:    []cfgtypes.NamedResourceType{{Name: "screen", Type: cfgtypes.Framebuffer}},
			Binary:   "shell.elf",
			HeapSize: 0x10000,
		},
	}
}

func TestResolveHappyPath(t *testing.T) {
	cfg, err := Resolve(testSystem(), testMachine(), testApps())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	proc, ok := cfg.Processes["shell"]
	if !ok {
		t.Fatal("resolved configuration missing process \"shell\"")
	}
	if proc.Binary != "shell.elf" {
		t.Fatalf("proc.Binary = %q, want shell.elf", proc.Binary)
	}

	res, ok := proc.Resources["screen"]
	if !ok {
		t.Fatal("process missing resolved \"screen\" resource")
	}
	if res.Meta.Kind != MetaFramebuffer {
		t.Fatalf("res.Meta.Kind = %v, want MetaFramebuffer", res.Meta.Kind)
	}
	if !res.HasRegion || res.Region.VirtStart != 0x10000000 {
		t.Fatalf("res.Region = %+v, want identity-mapped at 0x10000000", res.Region)
	}

	if proc.HeapEnd-proc.HeapStart != 0x10000 {
		t.Fatalf("heap size = %#x, want 0x10000", proc.HeapEnd-proc.HeapStart)
	}
	if proc.StackPtr <= proc.HeapEnd {
		t.Fatal("stack region must not collide with the heap region")
	}
}

func TestResolveUnresolvedMappingIsFatal(t *testing.T) {
	sys := testSystem()
	sys.Mappings = nil // drop the mapping for shell's "screen" need

	if _, err := Resolve(sys, testMachine(), testApps()); err == nil {
		t.Fatal("expected Resolve to fail when a need has no mapping")
	}
}

func TestResolveUnknownDeviceIsFatal(t *testing.T) {
	sys := testSystem()
	sys.Mappings = []cfgtypes.Mapping{{From: "does-not-exist", To: "shell.screen"}}

	if _, err := Resolve(sys, testMachine(), testApps()); err == nil {
		t.Fatal("expected Resolve to fail when a mapping references an unknown device")
	}
}

func TestResolveUnknownApplicationIsFatal(t *testing.T) {
	if _, err := Resolve(testSystem(), testMachine(), map[string]*cfgtypes.Application{}); err == nil {
		t.Fatal("expected Resolve to fail when a process references an unknown application")
	}
}
