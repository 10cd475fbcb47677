package main

import (
	"fmt"

	"github.com/oukeidos/subdeck/internal/ingest"
	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <slug>",
		Short: "Delete a content item with all its episodes and cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			ok, err := newConfirmer().Confirm(fmt.Sprintf("Delete %q with all its episodes and cards?", slug), yes)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing deleted.")
				return nil
			}
			client, err := a.apiClient(true)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			res, err := ingest.DeleteContent(ctx, client, slug, a.cfg.DeleteConcurrency, progressPrinter("Deleting episodes"))
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d episode(s).\n", res.Deleted, res.Episodes)
				if res.ItemDeleted {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q.\n", slug)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
