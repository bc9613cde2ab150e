// Package cfgfile loads declarative TOML configuration records from a
// configuration root directory, following a fixed per-kind path
// convention.
package cfgfile

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/cfgtypes"
)

// Kind selects which subdirectory Find resolves a record name in.
type Kind int

const (
	KindMachine Kind = iota
	KindApplication
	KindSystem
)

func (k Kind) dir() string {
	switch k {
	case KindMachine:
		return "machines"
	case KindApplication:
		return "applications"
	case KindSystem:
		return "systems"
	default:
		panic("cfgfile: unknown kind")
	}
}

// Find returns the path a record of the given kind and name would be
// loaded from: "<root>/<kind-plural>/<name>.toml".
func Find(kind Kind, root, name string) string {
	return filepath.Join(root, kind.dir(), name+".toml")
}

// LoadMachine loads a machine record by name from root.
func LoadMachine(root, name string) (*cfgtypes.Machine, error) {
	var m cfgtypes.Machine
	if err := load(Find(KindMachine, root, name), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadApplication loads an application record by name from root.
func LoadApplication(root, name string) (*cfgtypes.Application, error) {
	var a cfgtypes.Application
	if err := load(Find(KindApplication, root, name), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// LoadSystem loads a system record by name from root.
func LoadSystem(root, name string) (*cfgtypes.System, error) {
	var s cfgtypes.System
	if err := load(Find(KindSystem, root, name), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func load(path string, v interface{}) error {
	_, err := toml.DecodeFile(path, v)
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return buildererr.Wrapf(buildererr.ConfigNotFound, err, "configuration file %q not found", path)
	}
	return buildererr.Wrapf(buildererr.ConfigParse, err, "parsing configuration file %q", path)
}
