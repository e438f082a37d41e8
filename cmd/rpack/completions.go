package main

import (
	"github.com/spf13/cobra"
)

// archiveCompletions completes the archive argument with *.blob files and,
// for 'extract', the output argument with directories.
func archiveCompletions(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return []string{"blob"}, cobra.ShellCompDirectiveFilterFileExt
	case 1:
		if cmd.Name() == "extract" {
			return nil, cobra.ShellCompDirectiveFilterDirs
		}
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func directoryCompletions(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveFilterDirs
}
