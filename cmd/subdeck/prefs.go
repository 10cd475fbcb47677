package main

import (
	"fmt"
	"strings"

	"github.com/oukeidos/subdeck/internal/prefs"
	"github.com/spf13/cobra"
)

func newPrefsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show and change local preferences",
		Long: fmt.Sprintf(`Local preferences fill in defaults for search, practice and the CSV tools.

Keys: %s`, strings.Join(prefs.Keys, ", ")),
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show all preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openPrefs()
			if err != nil {
				return err
			}
			all, err := store.All(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), all)
			}
			for _, k := range prefs.Keys {
				v, ok := all[k]
				if !ok {
					v = "(unset)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", k, v)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "(stored in %s)\n", store.Path())
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a preference",
		Example: `  subdeck prefs set main_language ja
  subdeck prefs set subtitle_languages en,ko
  subdeck prefs set page_size 50`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openPrefs()
			if err != nil {
				return err
			}
			v, err := store.Set(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], v)
			return nil
		},
	}

	unset := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openPrefs()
			if err != nil {
				return err
			}
			if err := store.Unset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s unset\n", args[0])
			return nil
		},
	}

	for _, c := range []*cobra.Command{show, set, unset} {
		c.SetUsageTemplate(subcommandUsageTemplate)
		cmd.AddCommand(c)
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
