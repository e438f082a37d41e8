package main

import (
	"github.com/gingerrexayers/rpack-go/internal/rpack/commands"
	"github.com/spf13/cobra"
)

func NewInspectCommand() *cobra.Command {
	var options commands.InspectOptions

	cmd := &cobra.Command{
		Use:               "inspect <archive>",
		Short:             "Show a summary of an archive.",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: archiveCompletions,
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Inspect(args[0], options)
		},
	}

	cmd.Flags().BoolVarP(&options.Tree, "tree", "t", false, "List every entry of the archive")
	cmd.Flags().BoolVar(&options.Dedup, "dedup", false, "Estimate duplicated content with content-defined chunking")

	return cmd
}
