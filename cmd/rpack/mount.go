package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gingerrexayers/rpack-go/internal/rpack/commands"
	"github.com/gingerrexayers/rpack-go/internal/rpack/fusefs"
	"github.com/spf13/cobra"
)

// NewMountCommand creates the 'mount' command for the CLI.
func NewMountCommand() *cobra.Command {
	var mountpoint, script, fsName string
	var clampReads, allowOther, debug bool

	cmd := &cobra.Command{
		Use:   "mount <archive>",
		Short: "Mount an archive as a read-only filesystem.",
		Long: `Loads the archive once and serves it read-only at the mountpoint.
With --exec, the script is run with bash inside the mountpoint and the archive
is unmounted when it exits; otherwise the mount is served until interrupted.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: archiveCompletions,
		RunE: func(cmd *cobra.Command, args []string) error {
			options := commands.MountOptions{
				Mountpoint: cfg.Mountpoint,
				FsName:     cfg.FsName,
				Script:     cfg.Script,
				AllowOther: allowOther,
				Debug:      debug,
			}
			flags := cmd.Flags()
			if flags.Changed("mountpoint") {
				options.Mountpoint = mountpoint
			}
			if flags.Changed("fsname") {
				options.FsName = fsName
			}
			if flags.Changed("exec") {
				options.Script = script
			}
			clamp := cfg.ClampReads
			if flags.Changed("clamp-reads") {
				clamp = clampReads
			}
			options.ReadPolicy = fusefs.ReadWhole
			if clamp {
				options.ReadPolicy = fusefs.ReadClamp
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return commands.Mount(ctx, args[0], options)
		},
	}

	cmd.Flags().StringVarP(&mountpoint, "mountpoint", "m", cfg.Mountpoint, "Directory to mount the archive on")
	cmd.Flags().StringVarP(&script, "exec", "e", cfg.Script, "Script to run with bash inside the mountpoint before unmounting")
	cmd.Flags().StringVar(&fsName, "fsname", cfg.FsName, "Filesystem name reported to the kernel")
	cmd.Flags().BoolVar(&clampReads, "clamp-reads", cfg.ClampReads, "Return at most the requested number of bytes per read")
	cmd.Flags().BoolVar(&allowOther, "allow-other", false, "Allow other users to access the mount")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log every filesystem request")

	return cmd
}
