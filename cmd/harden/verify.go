package main

import "github.com/spf13/cobra"

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Parse and resolve the configured system, producing no output on success",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfiguration()
			if err != nil {
				return err
			}
			log.Debug("configuration resolved successfully")
			return nil
		},
	}
}
