// Package commands contains the command implementations behind the rpack
// command-line interface.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gingerrexayers/rpack-go/internal/rpack/lib"
	"github.com/gingerrexayers/rpack-go/internal/rpack/logging"
	"go.uber.org/zap"
)

// PackOptions configures the 'pack' command.
type PackOptions struct {
	Output        string
	SortEntries   bool
	UseIgnoreFile bool
}

// Pack packs targetDirectory into an archive file at options.Output.
func Pack(targetDirectory string, options PackOptions) error {
	absTargetPath, err := filepath.Abs(targetDirectory)
	if err != nil {
		return fmt.Errorf("could not resolve absolute path for %s: %w", targetDirectory, err)
	}
	info, err := os.Stat(absTargetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("target directory does not exist: %s", absTargetPath)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", absTargetPath, lib.ErrNotDirectory)
	}
	if options.Output == "" {
		return fmt.Errorf("output path is required")
	}

	log := logging.L().With(zap.String("source", absTargetPath))
	fmt.Printf("📦 Packing \"%s\"...\n", absTargetPath)

	packer := lib.NewPacker(lib.PackOptions{
		SortEntries:   options.SortEntries,
		UseIgnoreFile: options.UseIgnoreFile,
	})
	archive, err := packer.Pack(absTargetPath)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", absTargetPath, err)
	}
	log.Debug("tree packed",
		zap.Int("directories", len(archive.Directories)),
		zap.Int("files", len(archive.Files)),
		zap.Int("attributes", len(archive.Attributes)))

	if err := archive.Validate(); err != nil {
		return fmt.Errorf("packed archive is inconsistent: %w", err)
	}

	written, err := lib.WriteArchiveFile(archive, options.Output)
	if err != nil {
		return fmt.Errorf("failed to write archive %s: %w", options.Output, err)
	}
	digest, err := lib.GetFileHash(options.Output)
	if err != nil {
		return fmt.Errorf("failed to hash archive %s: %w", options.Output, err)
	}
	log.Info("archive written", zap.String("output", options.Output), zap.Int("bytes", written))

	fmt.Printf("   - %d directories, %d files, %s of content\n",
		len(archive.Directories), len(archive.Files), humanize.IBytes(archive.TotalContentSize()))
	fmt.Println("✅ Pack complete!")
	fmt.Printf("   - Archive: %s (%s)\n", options.Output, humanize.IBytes(uint64(written)))
	fmt.Printf("   - Digest: %s\n", digest)
	return nil
}
