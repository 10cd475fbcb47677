package main

import (
	"fmt"

	"github.com/oukeidos/subdeck/internal/version"
	"github.com/spf13/cobra"
)

func newAboutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "about",
		Short: "Show a short description and link",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "subdeck — subtitle card decks for language learning")
			fmt.Fprintln(out, "https://github.com/oukeidos/subdeck")
			fmt.Fprintln(out, version.Info())
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
