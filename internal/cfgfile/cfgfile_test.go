package cfgfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/cfgtypes"
)

func TestFindPathConvention(t *testing.T) {
	assert.Equal(t, "root/systems/foo.toml", Find(KindSystem, "root", "foo"))
	assert.Equal(t, "root/machines/qemu.toml", Find(KindMachine, "root", "qemu"))
	assert.Equal(t, "root/applications/shell.toml", Find(KindApplication, "root", "shell"))
}

func TestLoadMachineNotFound(t *testing.T) {
	_, err := LoadMachine("/nonexistent-root", "qemu")
	require.Error(t, err)
	kind, ok := buildererr.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, buildererr.ConfigNotFound, kind)
}

func TestLoadMachineMalformedTOML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "machines"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "machines", "qemu.toml"), []byte("not = [valid"), 0o644))

	_, err := LoadMachine(root, "qemu")
	require.Error(t, err)
	kind, ok := buildererr.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, buildererr.ConfigParse, kind)
}

func TestLoadMachineRoundTrips(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "machines"), 0o755))
	const body = `
name = "qemu"

[[available_memory]]
start = 0x80000000
size = 0x1000000

[[devices]]
name = "fb0"

[devices.resource]
type = "framebuffer"

[devices.resource.framebuffer]
height = 480
width = 640
stride = 1280
pixel = "r5g6b5"

[devices.resource.region]
start = 0x10000000
size = 0x200000
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "machines", "qemu.toml"), []byte(body), 0o644))

	machine, err := LoadMachine(root, "qemu")
	require.NoError(t, err)

	assert.Equal(t, &cfgtypes.Machine{
		Name: "qemu",
		AvailableMemory: []cfgtypes.MemoryRegion{
			{Start: 0x80000000, Size: 0x1000000},
		},
		Devices: []cfgtypes.NamedResource{
			{
				Name: "fb0",
				Resource: cfgtypes.Resource{
					Type: cfgtypes.Framebuffer,
					Framebuffer: cfgtypes.FramebufferFormat{
						Height: 480,
						Width:  640,
						Stride: 1280,
						Pixel:  cfgtypes.R5G6B5,
					},
					Region: cfgtypes.MemoryRegion{Start: 0x10000000, Size: 0x200000},
				},
			},
		},
	}, machine)
}

func TestLoadSystemRoundTrips(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "systems"), 0o755))
	const body = `
name = "demo"
machine = "qemu"
kernel = "kernel.elf"

[[processes]]
name = "alpha"
program = "shell"

[[mappings]]
from = "fb0"
to = "alpha.screen"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "systems", "demo.toml"), []byte(body), 0o644))

	sys, err := LoadSystem(root, "demo")
	require.NoError(t, err)

	assert.Equal(t, &cfgtypes.System{
		Name:      "demo",
		Machine:   "qemu",
		Kernel:    "kernel.elf",
		Processes: []cfgtypes.Process{{Name: "alpha", Program: "shell"}},
		Mappings:  []cfgtypes.Mapping{{From: "fb0", To: "alpha.screen"}},
	}, sys)
}
