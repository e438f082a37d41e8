package main

import (
	"github.com/gingerrexayers/rpack-go/internal/rpack/commands"
	"github.com/spf13/cobra"
)

func NewPackCommand() *cobra.Command {
	var output string
	var sortEntries, noIgnore bool

	cmd := &cobra.Command{
		Use:   "pack <directory>",
		Short: "Pack a directory into an archive file.",
		Long: `Packs every regular file and directory below <directory>, with its
permission bits and timestamps, into a single archive file. Entries matched by
a .rpackignore file at the top of <directory> are left out.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: directoryCompletions,
		RunE: func(cmd *cobra.Command, args []string) error {
			options := commands.PackOptions{
				Output:        cfg.Output,
				SortEntries:   cfg.SortEntries,
				UseIgnoreFile: cfg.UseIgnoreFile,
			}
			if cmd.Flags().Changed("output") {
				options.Output = output
			}
			if cmd.Flags().Changed("sort") {
				options.SortEntries = sortEntries
			}
			if cmd.Flags().Changed("no-ignore") {
				options.UseIgnoreFile = !noIgnore
			}
			return commands.Pack(args[0], options)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", cfg.Output, "Path of the archive to write")
	cmd.Flags().BoolVar(&sortEntries, "sort", cfg.SortEntries, "Number entries in name order instead of directory order")
	cmd.Flags().BoolVar(&noIgnore, "no-ignore", !cfg.UseIgnoreFile, "Do not read the .rpackignore file")

	return cmd
}
