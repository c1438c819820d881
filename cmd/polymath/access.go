package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xxxsen/polymath/internal/access"
)

const defaultAccessFile = "host.SECRET.json"

func newAccessCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "access",
		Short: "manage bearer tokens in the trust configuration",
	}
	cmd.PersistentFlags().StringVar(&file, "file", defaultAccessFile, "trust configuration file")

	var force bool
	grant := &cobra.Command{
		Use:   "grant <user> [tags...]",
		Short: "create a token for user and set its access tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := access.LoadConfigFile(file)
			if err != nil {
				return err
			}
			token, changed, err := cfg.Grant(args[0], args[1:], force)
			if err != nil {
				return err
			}
			if changed {
				if err := access.SaveConfigFile(file, cfg); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	grant.Flags().BoolVar(&force, "force", false, "replace an existing token")

	var revokeForce bool
	revoke := &cobra.Command{
		Use:   "revoke <user>",
		Short: "remove the token of user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := access.LoadConfigFile(file)
			if err != nil {
				return err
			}
			if err := cfg.Revoke(args[0], revokeForce); err != nil {
				return err
			}
			return access.SaveConfigFile(file, cfg)
		},
	}
	revoke.Flags().BoolVar(&revokeForce, "force", false, "confirm the removal")

	cmd.AddCommand(grant, revoke)
	return cmd
}
