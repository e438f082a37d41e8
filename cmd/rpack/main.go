package main

import (
	"fmt"
	"os"

	"github.com/gingerrexayers/rpack-go/internal/rpack/config"
	"github.com/gingerrexayers/rpack-go/internal/rpack/logging"
	"github.com/spf13/cobra"
)

// cfg holds the settings loaded before any subcommand runs. Flags that are
// set explicitly take precedence over it.
var cfg = config.Default()

func NewRootCommand() *cobra.Command {
	var logLevel, logFormat, logFile string

	rootCmd := &cobra.Command{
		Use:           "rpack",
		Short:         "Pack a directory tree into a single archive and mount it read-only.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = *loaded

			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if flags.Changed("log-file") {
				cfg.LogFile = logFile
			}
			return logging.Init(logging.Config{
				Level:      cfg.LogLevel,
				Format:     cfg.LogFormat,
				OutputPath: cfg.LogFile,
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", cfg.LogFormat, "Log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(NewPackCommand())
	rootCmd.AddCommand(NewMountCommand())
	rootCmd.AddCommand(NewInspectCommand())
	rootCmd.AddCommand(NewExtractCommand())
	rootCmd.AddCommand(NewCompletionCommand())
	return rootCmd
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
