package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"backoffice/internal/bootstrap"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Work with bootstrap seed files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate a seed file, or the built-in seed when no path is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			seed, err := bootstrap.Load(path)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seed ok: %d roles, %d policies, %d flags\n",
				len(seed.Roles), len(seed.Policies), len(seed.Flags))
			return err
		},
	})
	return cmd
}
