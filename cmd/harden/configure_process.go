package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/codegen"
)

func newConfigureProcessCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "configure-process PROC",
		Short: "Emit a process's configuration header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			procName := args[0]

			lang, err := codegen.ParseLanguage(language)
			if err != nil {
				return err
			}

			cfg, err := loadConfiguration()
			if err != nil {
				return err
			}

			proc, ok := cfg.Processes[procName]
			if !ok {
				return buildererr.Newf(buildererr.MappingUnresolved, "no such process %q in system %q", procName, flags.system)
			}

			out, err := codegen.Generate(lang, &proc)
			if err != nil {
				return err
			}
			log.Debugf("configuration header generated for process %q", procName)

			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "c++", "output language")
	return cmd
}
