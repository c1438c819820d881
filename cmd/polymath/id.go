package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xxxsen/polymath/internal/library"
)

func newIDCmd() *cobra.Command {
	var url, text string
	cmd := &cobra.Command{
		Use:   "id",
		Short: "print the canonical chunk id of a url and text",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), library.CanonicalID(url, text))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "chunk url")
	cmd.Flags().StringVar(&text, "text", "", "chunk text")
	return cmd
}
