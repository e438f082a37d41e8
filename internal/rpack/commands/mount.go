package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/gingerrexayers/rpack-go/internal/rpack/fusefs"
	"github.com/gingerrexayers/rpack-go/internal/rpack/lib"
	"github.com/gingerrexayers/rpack-go/internal/rpack/logging"
	"go.uber.org/zap"
)

// MountOptions configures the 'mount' command.
type MountOptions struct {
	Mountpoint string
	FsName     string

	// Script, when set, is run with bash inside the mountpoint; the archive
	// is unmounted as soon as it exits.
	Script string

	ReadPolicy fusefs.ReadPolicy
	AllowOther bool
	Debug      bool
}

// LoadArchive reads an archive file once and checks its node graph, so
// nothing served afterwards can hit a broken invariant.
func LoadArchive(archivePath string) (*lib.Archive, error) {
	archive, err := lib.ReadArchiveFile(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}
	if err := archive.Validate(); err != nil {
		return nil, fmt.Errorf("failed to load archive %s: %w", archivePath, err)
	}
	return archive, nil
}

// Mount serves the archive at archivePath read-only until ctx is cancelled
// or, when a script is configured, until the script finishes. A mountpoint
// created by Mount is removed again afterwards.
func Mount(ctx context.Context, archivePath string, options MountOptions) (err error) {
	archive, err := LoadArchive(archivePath)
	if err != nil {
		return err
	}

	log := logging.L().With(zap.String("mountpoint", options.Mountpoint))

	created := false
	if _, statErr := os.Stat(options.Mountpoint); errors.Is(statErr, os.ErrNotExist) {
		created = true
	}

	server, err := fusefs.Mount(fusefs.Options{
		Mountpoint: options.Mountpoint,
		Archive:    archive,
		FsName:     options.FsName,
		ReadPolicy: options.ReadPolicy,
		AllowOther: options.AllowOther,
		Debug:      options.Debug,
		Logger:     logging.L(),
	})
	if err != nil {
		if created {
			os.Remove(options.Mountpoint)
		}
		return err
	}
	externallyUnmounted := false
	defer func() {
		if externallyUnmounted {
			log.Info("filesystem was unmounted externally")
		} else {
			if unmountErr := server.Unmount(); unmountErr != nil {
				log.Warn("unmount failed", zap.Error(unmountErr))
				if err == nil {
					err = fmt.Errorf("failed to unmount %s: %w", options.Mountpoint, unmountErr)
				}
				return
			}
			log.Info("archive unmounted")
		}
		if created {
			if rmErr := os.Remove(options.Mountpoint); rmErr != nil {
				log.Warn("could not remove mountpoint", zap.Error(rmErr))
			}
		}
	}()

	fmt.Printf("🗂️  Mounted \"%s\" at \"%s\"\n", archivePath, options.Mountpoint)

	if options.Script != "" {
		return runScript(ctx, options.Mountpoint, options.Script)
	}

	// Serve until interrupted or unmounted from outside.
	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		log.Info("shutting down", zap.Error(context.Cause(ctx)))
	case <-done:
		externallyUnmounted = true
	}
	return nil
}

// runScript runs `bash script` with the mountpoint as working directory, so
// relative script paths resolve inside the mounted archive.
func runScript(ctx context.Context, mountpoint, script string) error {
	cmd := exec.CommandContext(ctx, "bash", script)
	cmd.Dir = mountpoint
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logging.L().Info("running script", zap.String("script", script))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("script %s failed: %w", script, err)
	}
	return nil
}
