package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/epoxyos/harden/internal/bootimage"
	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/cfgfile"
	"github.com/epoxyos/harden/internal/elfout"
	"github.com/epoxyos/harden/internal/pagetable"
)

func newBootImageCmd() *cobra.Command {
	var formatName string

	cmd := &cobra.Command{
		Use:   "boot-image USER-BINARIES...",
		Short: "Emit the bootable ELF to standard output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return buildererr.New(buildererr.TerminalOutput, "refusing to write a binary boot image to an interactive terminal; redirect standard output")
			}

			cfg, err := loadConfiguration()
			if err != nil {
				return err
			}

			format, err := parsePageTableFormat(formatName)
			if err != nil {
				return err
			}

			sys, err := cfgfile.LoadSystem(flags.cfgRoot, flags.system)
			if err != nil {
				return err
			}

			names := cfg.Processes.SortedNames()
			if len(args) != len(names) {
				return buildererr.Newf(buildererr.ConfigParse, "expected %d user binaries (one per process), got %d", len(names), len(args))
			}
			userBinaries := make(map[string]string, len(names))
			for i, name := range names {
				userBinaries[name] = args[i]
			}

			log.Debugf("building boot image for %d process(es) in %s format", len(names), formatName)
			result, err := bootimage.Build(cfg, format, sys.Kernel, userBinaries, log)
			if err != nil {
				return err
			}
			log.Debugf("boot image built: %d chunk(s), entry %#x", len(result.Chunks), result.Entry)

			return elfout.Write(out, result.Class, result.Entry, result.Chunks)
		},
	}

	cmd.Flags().StringVar(&formatName, "format", "sv39", "page table format: sv32 or sv39")
	return cmd
}

func parsePageTableFormat(name string) (pagetable.Format, error) {
	switch name {
	case "sv32":
		return pagetable.Sv32, nil
	case "sv39":
		return pagetable.Sv39, nil
	default:
		return pagetable.Format{}, buildererr.Newf(buildererr.ConfigParse, "unknown page table format %q, must be sv32 or sv39", name)
	}
}
