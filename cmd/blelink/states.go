package main

import (
	"github.com/spf13/cobra"

	"github.com/srg/blelink/pkg/lifecycle"
)

func newStatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "Print the lifecycle state table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			rendererFor(cmd, cfg.OutputFormat).table(lifecycle.Table())
			return nil
		},
	}
}
