package main

import (
	"context"
	"fmt"

	"github.com/oukeidos/subdeck/internal/ingest"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/recovery"
	"github.com/spf13/cobra"
)

func newRollbackCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rollback <journal.json>",
		Short: "Finish a rollback recorded after a failed ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollback(cmd, a, args[0], yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runRollback(cmd *cobra.Command, a *app, path string, yes bool) error {
	j, err := recovery.Load(path)
	if err != nil {
		return err
	}
	if j.APIBaseURL != "" && j.APIBaseURL != a.cfg.APIBaseURL {
		logger.Warn("Journal was written for a different backend", "journal", j.APIBaseURL, "configured", a.cfg.APIBaseURL)
	}
	if j.CSVPath != "" && j.CSVHash != "" {
		if hash, err := recovery.HashFileHex(j.CSVPath); err != nil {
			logger.Warn("Cannot read the CSV named in the journal", "path", j.CSVPath, "error", err)
		} else if hash != j.CSVHash {
			logger.Warn("CSV changed since the failed run", "path", j.CSVPath)
		}
	}

	target := fmt.Sprintf("content %q", j.ContentSlug)
	if j.Action == recovery.ActionDeleteEpisode {
		target = fmt.Sprintf("episode %d of %q", j.EpisodeNumber, j.ContentSlug)
	}
	ok, err := newConfirmer().Confirm(fmt.Sprintf("Delete %s?", target), yes)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "Rollback canceled.")
		return nil
	}

	client, err := a.apiClient(true)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, ingest.DefaultRollbackTimeout)
	defer cancel()
	if err := recovery.Replay(ctx, client, j); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rolled back: deleted %s.\n", target)
	return nil
}
