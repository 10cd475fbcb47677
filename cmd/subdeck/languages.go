package main

import (
	"fmt"
	"strings"

	"github.com/oukeidos/subdeck/internal/language"
	"github.com/spf13/cobra"
)

func newLanguagesCmd() *cobra.Command {
	var showAliases bool
	cmd := &cobra.Command{
		Use:     "languages",
		Aliases: []string{"list"},
		Short:   "List supported subtitle languages",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Supported Languages:")
			for _, l := range language.Supported() {
				line := fmt.Sprintf("  %-28s %-20s [%s]", l.Name, l.NativeName, l.Code)
				if showAliases && len(l.Aliases) > 0 {
					line += "  " + strings.Join(l.Aliases, ", ")
				}
				fmt.Fprintln(out, strings.TrimRight(line, " "))
			}
		},
	}
	cmd.Flags().BoolVar(&showAliases, "aliases", false, "Also print the accepted aliases")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
