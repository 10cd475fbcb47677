package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats <slug>",
		Short: "Recalculate and show the statistics of a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient(true)
			if err != nil {
				return err
			}
			stats, err := client.RecalculateStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, stats)
			}
			fmt.Fprintf(out, "Content: %s\n", stats.ContentSlug)
			fmt.Fprintf(out, "Episodes: %d\n", stats.Episodes)
			fmt.Fprintf(out, "Cards: %d\n", stats.Cards)
			fmt.Fprintf(out, "Average difficulty: %.2f\n", stats.AvgDifficulty)
			levels := make([]string, 0, len(stats.LevelHistogram))
			for l := range stats.LevelHistogram {
				levels = append(levels, l)
			}
			sort.Strings(levels)
			for _, l := range levels {
				fmt.Fprintf(out, "  %s: %d\n", l, stats.LevelHistogram[l])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
