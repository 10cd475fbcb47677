package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/oukeidos/subdeck/internal/model"
	"github.com/spf13/cobra"
)

func newItemsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List and inspect content items",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON")

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List content items",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient(false)
			if err != nil {
				return err
			}
			items, err := client.ListItems(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLUG\tTYPE\tLANG\tEPISODES\tTITLE")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", it.Slug, it.Type, it.MainLanguage, it.EpisodeCount, it.Title)
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <slug>",
		Short: "Show one content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient(false)
			if err != nil {
				return err
			}
			item, err := client.GetItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), item)
			}
			printItem(cmd, item)
			return nil
		},
	}

	episodes := &cobra.Command{
		Use:   "episodes <slug>",
		Short: "List the episodes of a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient(false)
			if err != nil {
				return err
			}
			eps, err := client.ListEpisodes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), eps)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EPISODE\tCARDS\tTITLE")
			for _, ep := range eps {
				fmt.Fprintf(tw, "%d\t%d\t%s\n", ep.Number, ep.CardCount, ep.Title)
			}
			return tw.Flush()
		},
	}

	for _, c := range []*cobra.Command{list, show, episodes} {
		c.SetUsageTemplate(subcommandUsageTemplate)
		cmd.AddCommand(c)
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func printItem(cmd *cobra.Command, item *model.ContentItem) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Slug: %s\n", item.Slug)
	fmt.Fprintf(w, "Title: %s\n", item.Title)
	fmt.Fprintf(w, "Type: %s\n", item.Type)
	fmt.Fprintf(w, "Main language: %s\n", item.MainLanguage)
	if item.ReleaseYear != 0 {
		fmt.Fprintf(w, "Year: %d\n", item.ReleaseYear)
	}
	if item.IMDBScore != 0 {
		fmt.Fprintf(w, "IMDb: %.1f\n", item.IMDBScore)
	}
	fmt.Fprintf(w, "Available: %t\n", item.Available)
	if len(item.Categories) > 0 {
		names := make([]string, 0, len(item.Categories))
		for _, c := range item.Categories {
			names = append(names, c.Name)
		}
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(names, ", "))
	}
	if item.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", item.Description)
	}
}
