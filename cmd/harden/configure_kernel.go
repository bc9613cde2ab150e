package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/elfin"
	"github.com/epoxyos/harden/internal/kernelcodegen"
	"github.com/epoxyos/harden/internal/runtypes"
)

func newConfigureKernelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure-kernel TYPE USER-BINARIES...",
		Short: "Emit one of state-hpp, state-cpp, or resources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			binaries := args[1:]

			cfg, err := loadConfiguration()
			if err != nil {
				return err
			}

			var out string
			switch kind {
			case "state-hpp":
				out, err = kernelcodegen.GenerateStateHPP(cfg)
			case "state-cpp":
				entries, entryErr := resolveEntries(cfg, binaries)
				if entryErr != nil {
					return entryErr
				}
				out, err = kernelcodegen.GenerateStateCPP(cfg, entries)
			case "resources":
				out, err = kernelcodegen.GenerateResources(cfg)
			default:
				return buildererr.Newf(buildererr.ConfigParse, "unknown configure-kernel type %q, must be state-hpp, state-cpp, or resources", kind)
			}
			if err != nil {
				return err
			}
			log.Debugf("configure-kernel %q generated", kind)

			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

// resolveEntries loads each user binary's ELF entry point, in the same
// ascending process-name order the binaries were passed in.
func resolveEntries(cfg *runtypes.Configuration, binaries []string) (map[string]uint64, error) {
	names := cfg.Processes.SortedNames()
	if len(binaries) != len(names) {
		return nil, buildererr.Newf(buildererr.ConfigParse, "expected %d user binaries (one per process), got %d", len(names), len(binaries))
	}

	entries := make(map[string]uint64, len(names))
	for i, name := range names {
		e, err := elfin.Load(binaries[i])
		if err != nil {
			return nil, err
		}
		entries[name] = e.Entry
	}
	return entries, nil
}
