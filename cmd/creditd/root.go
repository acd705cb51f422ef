package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/creditkit/pkg/config"
)

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           "creditd",
		Short:         "Credit ledger and subscription lifecycle service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if len(envFiles) == 0 {
				return nil
			}
			return config.LoadEnv(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading the environment")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSweepCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newCreditsCmd(newApp))
	return root
}
