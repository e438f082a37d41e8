package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gingerrexayers/rpack-go/internal/rpack/lib"
	"github.com/gingerrexayers/rpack-go/internal/rpack/logging"
	"github.com/gingerrexayers/rpack-go/internal/rpack/types"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// fileExtractJob holds the information needed for a worker to write one file.
type fileExtractJob struct {
	File            *types.File
	Attr            *types.Attribute
	DestinationPath string
}

// extractFileWorker writes files from the jobs channel and restores their
// permission bits and timestamps.
func extractFileWorker(wg *sync.WaitGroup, jobs <-chan fileExtractJob, errs chan<- error) {
	defer wg.Done()
	for job := range jobs {
		if err := os.WriteFile(job.DestinationPath, job.File.Content, 0o600); err != nil {
			reportFirst(errs, fmt.Errorf("failed to write file %s: %w", job.DestinationPath, err))
			continue
		}
		if err := applyAttribute(job.DestinationPath, job.Attr); err != nil {
			reportFirst(errs, err)
		}
	}
}

// reportFirst keeps the first error in errs, which has room for exactly one,
// and drops the rest so a worker never blocks.
func reportFirst(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}

// applyAttribute sets permission bits and access/modification times.
func applyAttribute(path string, attr *types.Attribute) error {
	if err := os.Chmod(path, os.FileMode(attr.Perm&0o777)|extraModeBits(attr.Perm)); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	times := []unix.Timespec{toUnixTimespec(attr.Atime), toUnixTimespec(attr.Mtime)}
	if err := unix.UtimesNano(path, times); err != nil {
		return fmt.Errorf("failed to set times on %s: %w", path, err)
	}
	return nil
}

func extraModeBits(perm uint16) os.FileMode {
	var mode os.FileMode
	if perm&unix.S_ISUID != 0 {
		mode |= os.ModeSetuid
	}
	if perm&unix.S_ISGID != 0 {
		mode |= os.ModeSetgid
	}
	if perm&unix.S_ISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

func toUnixTimespec(ts types.Timespec) unix.Timespec {
	return unix.NsecToTimespec(time.Unix(ts.Sec, int64(ts.Nsec)).UnixNano())
}

// pendingDirAttr is a directory whose attributes are applied once all of its
// contents exist, so writing children does not disturb its mtime.
type pendingDirAttr struct {
	path string
	attr *types.Attribute
}

// extractTree creates the directories below dir and queues its files.
// Directories are recorded in post-order.
func extractTree(archive *lib.Archive, dir *types.Directory, destinationPath string, jobs chan<- fileExtractJob, dirs *[]pendingDirAttr) error {
	for _, child := range dir.Children {
		name, _ := archive.ChildName(child)
		if name == "." || name == ".." || filepath.Base(name) != name {
			return fmt.Errorf("refusing to extract unsafe name %q", name)
		}
		fullPath := filepath.Join(destinationPath, name)
		attr, _ := archive.Attribute(child.ID)

		if child.Kind == types.KindFile {
			file, _ := archive.File(child.ID)
			jobs <- fileExtractJob{File: file, Attr: attr, DestinationPath: fullPath}
			continue
		}

		if err := os.Mkdir(fullPath, 0o700); err != nil {
			return err
		}
		sub, _ := archive.Directory(child.ID)
		if err := extractTree(archive, sub, fullPath, jobs, dirs); err != nil {
			return err
		}
		*dirs = append(*dirs, pendingDirAttr{path: fullPath, attr: attr})
	}
	return nil
}

// Extract restores the archive at archivePath into outputDir, which must be
// empty or not exist yet. The archive root's contents land directly in
// outputDir.
func Extract(archivePath, outputDir string, workers int) error {
	archive, err := LoadArchive(archivePath)
	if err != nil {
		return err
	}
	absOutputDir, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("could not resolve output path: %w", err)
	}
	if err := ensureEmptyDir(absOutputDir); err != nil {
		return err
	}
	if workers < 1 {
		workers = 1
	}

	root, _ := archive.Root()
	log := logging.L().With(zap.String("output", absOutputDir))
	fmt.Printf("💧 Extracting \"%s\" to \"%s\"...\n", archivePath, absOutputDir)

	jobs := make(chan fileExtractJob, 100)
	errs := make(chan error, 1)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go extractFileWorker(&wg, jobs, errs)
	}

	var dirs []pendingDirAttr
	err = extractTree(archive, root, absOutputDir, jobs, &dirs)
	close(jobs)
	wg.Wait()
	close(errs)
	if err != nil {
		return fmt.Errorf("failed during tree traversal: %w", err)
	}
	// Report the first error any worker hit.
	if extractErr, ok := <-errs; ok {
		return fmt.Errorf("an extract worker failed: %w", extractErr)
	}

	// Children were written first, so directory times are final here.
	rootAttr, _ := archive.Attribute(root.ID)
	dirs = append(dirs, pendingDirAttr{path: absOutputDir, attr: rootAttr})
	for _, d := range dirs {
		if err := applyAttribute(d.path, d.attr); err != nil {
			log.Warn("could not restore directory attributes", zap.String("path", d.path), zap.Error(err))
		}
	}

	log.Debug("extract finished", zap.Int("files", len(archive.Files)), zap.Int("directories", len(dirs)))
	fmt.Println("✅ Extract complete!")
	return nil
}

func ensureEmptyDir(path string) error {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0o755)
	}
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("output directory %s is not empty", path)
	}
	return nil
}
