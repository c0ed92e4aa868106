// Package cli provides the command-line interface for tablejoin.
package cli

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/NerdMeNot/tablejoin/internal/cli/commands"
	"github.com/NerdMeNot/tablejoin/internal/config"
	"github.com/NerdMeNot/tablejoin/internal/logging"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// setupLogging builds the logger for a run; tests swap it out.
var setupLogging = logging.Setup

// NewRootCmd creates and returns the root command. Buffered Seq events are
// flushed when a command succeeds; Execute also flushes them on failure.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

// newRootCmd returns the root command and a func that releases the logging
// sinks it opened. The func is safe to call more than once.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile string
		cleanup = func() {}
		once    sync.Once
	)
	finish := func() { once.Do(func() { cleanup() }) }

	rootCmd := &cobra.Command{
		Use:   "tablejoin",
		Short: "tablejoin - relational joins over table files",
		Long: `tablejoin joins two tables loaded from CSV, JSON, Arrow IPC, Parquet or
MessagePack files with inner, left outer, full outer or left semi semantics.

Settings come from flags, TABLEJOIN_ environment variables and an optional
tablejoin.yaml job file, in that order of precedence.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, closeFn, err := setupLogging(logging.Options{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				SeqURL: cfg.SeqURL,
				Writer: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			cleanup = closeFn
			logger = logger.With("run_id", uuid.NewString())
			if cfg.File != "" {
				logger.Debug("using config file", "path", cfg.File)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = config.WithConfig(ctx, cfg)
			ctx = logging.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			finish()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./tablejoin.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")
	rootCmd.PersistentFlags().String("seq-url", "", "Seq server URL for structured logs")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output (log level debug)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewJoinCommand())
	rootCmd.AddCommand(commands.NewInspectCommand())
	rootCmd.AddCommand(commands.NewSuffixCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit))

	return rootCmd, finish
}

// Execute runs the root command.
func Execute() error {
	rootCmd, finish := newRootCmd()
	// cobra skips PersistentPostRun when RunE fails
	defer finish()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
