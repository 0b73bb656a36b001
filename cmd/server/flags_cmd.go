package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"backoffice/internal/bootstrap"
	"backoffice/internal/featureflag"
	"backoffice/internal/policy"
	"backoffice/internal/rbac"
)

func newFlagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Inspect feature flags from a seed file",
	}
	cmd.AddCommand(newFlagsEvalCmd())
	return cmd
}

func newFlagsEvalCmd() *cobra.Command {
	var (
		seedPath string
		ec       featureflag.EvalContext
	)
	cmd := &cobra.Command{
		Use:   "eval <flag-id>",
		Short: "Evaluate a flag for an identity without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := bootstrap.Load(seedPath)
			if err != nil {
				return err
			}
			flags := featureflag.NewEngine()
			if err := seed.Apply(rbac.NewEngine(), policy.NewEngine(), flags); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(flags.Evaluate(args[0], ec)); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "seed file (defaults to the built-in seed)")
	cmd.Flags().StringVar(&ec.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&ec.TenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&ec.Role, "role", "", "role")
	cmd.Flags().StringVar(&ec.Region, "region", "", "region")
	cmd.Flags().StringVar(&ec.Locale, "locale", "", "locale")
	return cmd
}
