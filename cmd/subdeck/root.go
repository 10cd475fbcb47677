package main

import (
	"fmt"
	"io"
	"os"

	"github.com/oukeidos/subdeck/internal/cleanup"
	"github.com/oukeidos/subdeck/internal/config"
	"github.com/oukeidos/subdeck/internal/files"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the global flags and the resolved configuration to every command.
type app struct {
	configPath  string
	logFilePath string
	logLevel    string
	debug       bool
	allowEnv    bool

	v   *viper.Viper
	cfg config.Config
}

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		fmt.Fprintln(os.Stderr, cleanupErr)
		if err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:   "subdeck",
		Short: "Subtitle card deck admin and study tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				_ = cmd.Usage()
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.Version = version.Info()
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetUsageTemplate(rootUsageTemplate)

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default $HOME/.subdeck.yaml)")
	pf.StringVar(&a.logFilePath, "log-file", "", "Path to save machine-readable JSONL logs")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	pf.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&a.allowEnv, "allow-env", false, "Allow reading tokens and keys from environment variables")
	_ = a.v.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level"))

	cmd.AddCommand(
		newAboutCmd(),
		newValidateCmd(a),
		newIngestCmd(a),
		newRollbackCmd(a),
		newDeleteCmd(a),
		newItemsCmd(a),
		newCategoriesCmd(a),
		newStatsCmd(a),
		newSearchCmd(a),
		newPracticeCmd(a),
		newSubtitlesCmd(a),
		newFillCmd(a),
		newPrefsCmd(a),
		newLanguagesCmd(),
		newEnvCmd(),
	)

	cmd.InitDefaultCompletionCmd()
	for _, sub := range cmd.Commands() {
		if sub.Name() == "completion" {
			sub.SetUsageTemplate(subcommandUsageTemplate)
			break
		}
	}
	return cmd
}

// init loads configuration and sets up logging before any command runs.
func (a *app) init(cmd *cobra.Command) error {
	cfg, notes, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if a.debug {
		level = logger.LevelDebug
	}
	var logFileW io.Writer
	if a.logFilePath != "" {
		if err := files.RejectSymlinkPath(a.logFilePath); err != nil {
			return err
		}
		f, err := os.OpenFile(a.logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register("log file", f.Close)
		logFileW = f
	}
	logger.Init(level, logFileW)

	if used := a.v.ConfigFileUsed(); used != "" {
		logger.Debug("Config loaded", "path", used)
	}
	for _, n := range notes {
		logger.Warn("Config normalized", "note", n)
	}
	return nil
}
