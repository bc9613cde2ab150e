// Command harden builds an offline static boot image for a capability-based
// RISC-V microkernel from a declarative system configuration and a set of
// input ELF binaries.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/epoxyos/harden/internal/cfgfile"
	"github.com/epoxyos/harden/internal/cfgtypes"
	"github.com/epoxyos/harden/internal/logging"
	"github.com/epoxyos/harden/internal/runtypes"
)

type globalFlags struct {
	verbosity int
	quiet     bool
	cfgRoot   string
	system    string
}

var flags globalFlags
var log *logrus.Logger

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printCausalChain(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "harden",
		Short:         "Build offline static boot images for the harden microkernel",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logging.New(flags.verbosity, flags.quiet)
		},
	}

	pflags := root.PersistentFlags()
	pflags.CountVarP(&flags.verbosity, "verbose", "v", "increase verbosity (repeatable)")
	pflags.BoolVarP(&flags.quiet, "quiet", "q", false, "suppress all but error output")
	pflags.StringVarP(&flags.cfgRoot, "cfg-root", "r", env.Str("HARDEN_CFG_ROOT", ""), "configuration root directory")
	pflags.StringVarP(&flags.system, "system", "s", "", "system name to build")
	if flags.cfgRoot == "" {
		// Only required on the command line when HARDEN_CFG_ROOT did not
		// already supply a default.
		root.MarkPersistentFlagRequired("cfg-root")
	}
	root.MarkPersistentFlagRequired("system")

	root.AddCommand(
		newVerifyCmd(),
		newListProcessesCmd(),
		newConfigureProcessCmd(),
		newConfigureKernelCmd(),
		newBootImageCmd(),
	)
	return root
}

// printCausalChain writes err and every cause beneath it to stderr, one
// line per level, mirroring the builder's causal-chain error contract.
func printCausalChain(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)

	type causer interface{ Cause() error }
	for {
		c, ok := err.(causer)
		if !ok {
			return
		}
		cause := c.Cause()
		if cause == nil {
			return
		}
		fmt.Fprintln(os.Stderr, "caused by:", cause)
		err = cause
	}
}

// loadConfiguration loads and resolves the named system against the
// configured root, following cfgfile's path convention for every
// referenced machine and application record.
func loadConfiguration() (*runtypes.Configuration, error) {
	sys, err := cfgfile.LoadSystem(flags.cfgRoot, flags.system)
	if err != nil {
		return nil, err
	}

	machine, err := cfgfile.LoadMachine(flags.cfgRoot, sys.Machine)
	if err != nil {
		return nil, err
	}

	appNames := make(map[string]bool)
	for _, p := range sys.Processes {
		appNames[p.Program] = true
	}

	apps := make(map[string]*cfgtypes.Application, len(appNames))
	for name := range appNames {
		app, err := cfgfile.LoadApplication(flags.cfgRoot, name)
		if err != nil {
			return nil, err
		}
		apps[name] = app
	}

	return runtypes.Resolve(sys, machine, apps)
}
