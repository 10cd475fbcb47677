package main

import (
	"fmt"
	"strings"

	"github.com/oukeidos/subdeck/internal/auth"
	"github.com/spf13/cobra"
)

type envOptions struct {
	service string
}

func newEnvCmd() *cobra.Command {
	opts := envOptions{}
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage tokens and API keys in the OS keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvStatus(cmd, &opts)
		},
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.PersistentFlags().StringVar(&opts.service, "service", "api", "Secret to manage ("+strings.Join(auth.ServiceNames(), ", ")+")")

	cmd.AddCommand(
		newEnvSetupCmd(&opts),
		newEnvDeleteCmd(&opts),
		newEnvStatusCmd(&opts),
	)
	return cmd
}

func newEnvSetupCmd(opts *envOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Save a secret to the keychain (prompt only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvSetup(cmd, opts)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newEnvDeleteCmd(opts *envOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a secret from the keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvDelete(cmd, opts)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newEnvStatusCmd(opts *envOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show secret status (default if no action given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvStatus(cmd, opts)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runEnvSetup(cmd *cobra.Command, opts *envOptions) error {
	svc, err := auth.ParseService(opts.service)
	if err != nil {
		return err
	}
	key, err := promptForKey(svc.Label() + ": ")
	if err != nil {
		return fmt.Errorf("error reading key: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%s is required for setup", svc.Label())
	}
	if err := saveKey(svc, key); err != nil {
		return fmt.Errorf("error saving key: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to keychain.\n", svc.Label())
	return nil
}

func runEnvDelete(cmd *cobra.Command, opts *envOptions) error {
	svc, err := auth.ParseService(opts.service)
	if err != nil {
		return err
	}
	if err := deleteKey(svc); err != nil {
		return fmt.Errorf("error deleting key: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s from keychain.\n", svc.Label())
	return nil
}

func runEnvStatus(cmd *cobra.Command, opts *envOptions) error {
	services := []auth.Service{auth.ServiceAPI, auth.ServiceStorage, auth.ServiceGemini}
	if cmd.Flags().Changed("service") {
		svc, err := auth.ParseService(opts.service)
		if err != nil {
			return err
		}
		services = []auth.Service{svc}
	}
	out := cmd.OutOrStdout()
	for _, svc := range services {
		switch {
		case getStatus(svc):
			fmt.Fprintf(out, "%s: Found (source=Keychain)\n", svc.Label())
		default:
			if key, ok := getEnvKey(svc); ok && key != "" {
				fmt.Fprintf(out, "%s: Found (source=Environment Variable %s; disabled by default, use --allow-env)\n", svc.Label(), svc.EnvVar())
				continue
			}
			fmt.Fprintf(out, "%s: Not Found (keychain empty, %s not set)\n", svc.Label(), svc.EnvVar())
		}
	}
	return nil
}
