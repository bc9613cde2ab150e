package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListProcessesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-processes",
		Short: "Print each user process name, one per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration()
			if err != nil {
				return err
			}
			names := cfg.Processes.SortedNames()
			log.Debugf("listing %d process(es)", len(names))
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
