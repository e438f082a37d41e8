package main

import (
	"github.com/gingerrexayers/rpack-go/internal/rpack/commands"
	"github.com/spf13/cobra"
)

// NewExtractCommand creates the 'extract' command for the CLI.
func NewExtractCommand() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "extract <archive> <directory>",
		Short: "Restore an archive's tree to a directory.",
		Long: `Writes every file and directory of the archive below <directory>,
restoring permission bits and timestamps. <directory> must be empty or absent.`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: archiveCompletions,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Workers
			}
			return commands.Extract(args[0], args[1], workers)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", cfg.Workers, "Number of files written in parallel")

	return cmd
}
