package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gingerrexayers/rpack-go/internal/rpack/lib"
	"github.com/gingerrexayers/rpack-go/internal/rpack/types"
)

// InspectOptions configures the 'inspect' command.
type InspectOptions struct {
	Tree  bool
	Dedup bool
}

// Inspect prints a summary of the archive at archivePath. A structurally
// invalid archive is still summarised, but Inspect returns the validation
// error afterwards.
func Inspect(archivePath string, options InspectOptions) error {
	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to inspect archive: %w", err)
	}
	archive, err := lib.ReadArchiveFile(archivePath)
	if err != nil {
		return fmt.Errorf("failed to inspect archive: %w", err)
	}
	digest, err := lib.GetFileHash(archivePath)
	if err != nil {
		return fmt.Errorf("failed to hash archive %s: %w", archivePath, err)
	}

	fmt.Printf("Archive \"%s\":\n", archivePath)
	fmt.Printf("%-14s %s\n", "SIZE", humanize.IBytes(uint64(info.Size())))
	fmt.Printf("%-14s %s\n", "DIGEST", digest)
	fmt.Printf("%-14s %s\n", "DIRECTORIES", humanize.Comma(int64(len(archive.Directories))))
	fmt.Printf("%-14s %s\n", "FILES", humanize.Comma(int64(len(archive.Files))))
	fmt.Printf("%-14s %s\n", "ATTRIBUTES", humanize.Comma(int64(len(archive.Attributes))))
	fmt.Printf("%-14s %s\n", "CONTENT", humanize.IBytes(archive.TotalContentSize()))
	if root, ok := archive.Root(); ok {
		fmt.Printf("%-14s %s (id %d)\n", "ROOT", root.Name, root.ID)
	}

	validateErr := archive.Validate()
	if validateErr != nil {
		fmt.Printf("%-14s %v\n", "STATUS", validateErr)
	} else {
		fmt.Printf("%-14s %s\n", "STATUS", "ok")
	}

	if options.Dedup {
		report, err := lib.DedupStats(archive)
		if err != nil {
			return fmt.Errorf("failed to chunk archive content: %w", err)
		}
		printDedupReport(report)
	}

	if options.Tree && validateErr == nil {
		fmt.Println()
		if err := printTree(archive); err != nil {
			return err
		}
	}
	return validateErr
}

func printDedupReport(report types.DedupReport) {
	saved := report.TotalBytes - report.UniqueBytes
	ratio := 0.0
	if report.TotalBytes > 0 {
		ratio = float64(saved) / float64(report.TotalBytes) * 100
	}
	fmt.Printf("\nDeduplication estimate (content-defined chunks):\n")
	fmt.Printf("%-14s %s (%s unique)\n", "CHUNKS", humanize.Comma(int64(report.Chunks)), humanize.Comma(int64(report.UniqueChunks)))
	fmt.Printf("%-14s %s\n", "UNIQUE", humanize.IBytes(uint64(report.UniqueBytes)))
	fmt.Printf("%-14s %s (%.1f%%)\n", "DUPLICATE", humanize.IBytes(uint64(saved)), ratio)
}

func printTree(archive *lib.Archive) error {
	root, _ := archive.Root()
	fmt.Printf("%s/\n", root.Name)
	return archive.Walk("/", func(_ string, depth int, child types.Child) error {
		indent := strings.Repeat("  ", depth+1)
		name, _ := archive.ChildName(child)
		if child.Kind == types.KindDirectory {
			fmt.Printf("%s%s/\n", indent, name)
			return nil
		}
		size := "?"
		if attr, ok := archive.Attribute(child.ID); ok {
			size = humanize.IBytes(attr.Size)
		}
		fmt.Printf("%s%s  [%s]\n", indent, name, size)
		return nil
	})
}
