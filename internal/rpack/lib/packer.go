package lib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/gingerrexayers/rpack-go/internal/rpack/types"
	"golang.org/x/sys/unix"
)

// Identifier layout used by Pack. MountRootID is reserved by the FUSE
// protocol for the mount root and is never assigned to a packed node.
const (
	MountRootID   uint64 = 1
	ArchiveRootID uint64 = 2
	FirstFreeID   uint64 = 3
)

var (
	// ErrNotDirectory is returned when the pack root is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrInvalidName is returned for entry names that are not valid UTF-8.
	ErrInvalidName = errors.New("entry name is not valid UTF-8")
	// ErrHarvest is returned when attribute harvesting fails for any node.
	ErrHarvest = errors.New("attribute harvesting failed")
)

// PackOptions tunes how a directory is walked.
type PackOptions struct {
	// SortEntries orders directory entries by name instead of the host's
	// native enumeration order, making ids reproducible across hosts.
	SortEntries bool

	// UseIgnoreFile honours a .rpackignore file at the pack root.
	UseIgnoreFile bool
}

// Packer turns a real directory tree into an Archive. A Packer is not safe
// for concurrent use; it accumulates records for one tree at a time.
type Packer struct {
	options PackOptions
	ignore  *IgnoreMatcher

	dirs  []types.Directory
	files []types.File
}

// NewPacker returns a Packer configured with options.
func NewPacker(options PackOptions) *Packer {
	return &Packer{options: options}
}

// Pack builds a complete archive from the directory at root: the tree is
// numbered starting with ArchiveRootID under MountRootID, and the attribute
// list starts with the mount-root record followed by the harvested records.
func (p *Packer) Pack(root string) (*Archive, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	archive, _, err := p.BuildTree(root, MountRootID, ArchiveRootID, FirstFreeID)
	if err != nil {
		return nil, err
	}
	archive.Attributes = append(archive.Attributes, MountRootAttribute(archive.Epoch))
	if err := HarvestAttributes(archive, root); err != nil {
		return nil, err
	}
	return archive, nil
}

// MountRootAttribute is the attribute record served for the protocol's
// mount-root sentinel id.
func MountRootAttribute(epoch types.Timespec) types.Attribute {
	attr := types.Attribute{
		ID:    MountRootID,
		Atime: epoch,
		Mtime: epoch,
		Ctime: epoch,
		Perm:  0o755,
		Kind:  types.KindDirectory,
	}.WithPlaceholders()
	attr.Nlink = 2
	return attr
}

// BuildTree walks the directory at path and returns an archive without
// attributes, plus the next free id. The root gets rootID and parentID;
// fresh ids are allocated from next.
//
// Numbering is depth-first: the immediate files of a directory are numbered
// first, then its immediate subdirectories, and each subdirectory's whole
// subtree is numbered before its next sibling directory. Any listing error
// or undecodable name aborts the walk.
func (p *Packer) BuildTree(path string, parentID, rootID, next uint64) (*Archive, uint64, error) {
	p.dirs = nil
	p.files = nil
	p.ignore = nil
	if p.options.UseIgnoreFile {
		matcher, err := LoadIgnoreMatcher(path)
		if err != nil {
			return nil, 0, err
		}
		p.ignore = matcher
	}

	name, err := rootName(path)
	if err != nil {
		return nil, 0, err
	}
	next, err = p.buildDirectory(path, name, parentID, rootID, next, true)
	if err != nil {
		return nil, 0, err
	}

	archive := NewArchive(types.Timespec{}, p.dirs, p.files, nil)
	p.dirs = nil
	p.files = nil
	return archive, next, nil
}

func rootName(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	name := filepath.Base(abs)
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return name, nil
}

// pendingDir is a subdirectory shell whose id is assigned but whose
// contents have not been walked yet.
type pendingDir struct {
	name string
	id   uint64
}

func (p *Packer) buildDirectory(path, name string, parentID, id, next uint64, isRoot bool) (uint64, error) {
	entries, err := p.listDirectory(path)
	if err != nil {
		return 0, err
	}

	var files []types.File
	for _, e := range entries {
		if e.isDir {
			continue
		}
		content, err := os.ReadFile(filepath.Join(path, e.name))
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", filepath.Join(path, e.name), err)
		}
		files = append(files, types.File{Name: e.name, ID: next, Content: content})
		next++
	}

	var subdirs []pendingDir
	for _, e := range entries {
		if !e.isDir {
			continue
		}
		subdirs = append(subdirs, pendingDir{name: e.name, id: next})
		next++
	}

	for _, sub := range subdirs {
		next, err = p.buildDirectory(filepath.Join(path, sub.name), sub.name, id, sub.id, next, false)
		if err != nil {
			return 0, err
		}
	}

	children := make([]types.Child, 0, len(files)+len(subdirs))
	for _, f := range files {
		children = append(children, types.Child{ID: f.ID, Kind: types.KindFile})
	}
	for _, sub := range subdirs {
		children = append(children, types.Child{ID: sub.id, Kind: types.KindDirectory})
	}

	p.files = append(p.files, files...)
	p.dirs = append(p.dirs, types.Directory{
		Name:     name,
		ID:       id,
		ParentID: parentID,
		Children: children,
		IsRoot:   isRoot,
	})
	return next, nil
}

type dirEntry struct {
	name  string
	isDir bool
}

// listDirectory returns the regular files and directories directly under
// path, following symlinks, in native enumeration order unless sorting is
// enabled. Other entry types are skipped.
func (p *Packer) listDirectory(path string) ([]dirEntry, error) {
	dir, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening directory %s: %w", path, err)
	}
	defer dir.Close()

	// File.ReadDir, unlike os.ReadDir, keeps the order the host returns.
	raw, err := dir.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("listing directory %s: %w", path, err)
	}
	if p.options.SortEntries {
		sort.Slice(raw, func(i, j int) bool { return raw[i].Name() < raw[j].Name() })
	}

	entries := make([]dirEntry, 0, len(raw))
	for _, e := range raw {
		name := e.Name()
		if !utf8.ValidString(name) {
			return nil, fmt.Errorf("%q in %s: %w", name, path, ErrInvalidName)
		}
		fullPath := filepath.Join(path, name)

		info, err := os.Stat(fullPath)
		if err != nil {
			if e.Type()&os.ModeSymlink != 0 {
				// Dangling link: neither a file nor a directory.
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", fullPath, err)
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			continue
		}
		if p.ignore.Ignored(fullPath, info.IsDir()) {
			continue
		}
		entries = append(entries, dirEntry{name: name, isDir: info.IsDir()})
	}
	return entries, nil
}

// HarvestAttributes appends one attribute record per node of the archive,
// read from the real tree at rootPath, in post-order: for each directory its
// children in stored order (subdirectories recursed into first), then the
// directory itself. Any metadata failure aborts with ErrHarvest.
func HarvestAttributes(archive *Archive, rootPath string) error {
	root, ok := archive.Root()
	if !ok {
		return fmt.Errorf("%w: archive has no root directory", ErrHarvest)
	}
	attrs, err := harvestDirectory(archive, root, rootPath, archive.Attributes)
	if err != nil {
		return err
	}
	archive.Attributes = attrs
	archive.attrIndex = make(map[uint64]int, len(attrs))
	for i := range attrs {
		if _, ok := archive.attrIndex[attrs[i].ID]; !ok {
			archive.attrIndex[attrs[i].ID] = i
		}
	}
	return nil
}

func harvestDirectory(archive *Archive, dir *types.Directory, path string, attrs []types.Attribute) ([]types.Attribute, error) {
	for _, child := range dir.Children {
		if child.Kind == types.KindFile {
			file, ok := archive.File(child.ID)
			if !ok {
				return nil, fmt.Errorf("%w: file %d missing from archive", ErrHarvest, child.ID)
			}
			attr, err := statAttribute(filepath.Join(path, file.Name), file.ID, types.KindFile)
			if err != nil {
				return nil, err
			}
			attr.Size = uint64(len(file.Content))
			attrs = append(attrs, attr)
			continue
		}

		sub, ok := archive.Directory(child.ID)
		if !ok {
			return nil, fmt.Errorf("%w: directory %d missing from archive", ErrHarvest, child.ID)
		}
		var err error
		attrs, err = harvestDirectory(archive, sub, filepath.Join(path, sub.Name), attrs)
		if err != nil {
			return nil, err
		}
	}

	attr, err := statAttribute(path, dir.ID, types.KindDirectory)
	if err != nil {
		return nil, err
	}
	return append(attrs, attr), nil
}

func statAttribute(path string, id uint64, kind types.Kind) (types.Attribute, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return types.Attribute{}, fmt.Errorf("%w: stat %s: %v", ErrHarvest, path, err)
	}
	return types.Attribute{
		ID:    id,
		Atime: timespecOf(st.Atim),
		Mtime: timespecOf(st.Mtim),
		Ctime: timespecOf(st.Ctim),
		Perm:  uint16(st.Mode & 0o7777),
		Kind:  kind,
	}.WithPlaceholders(), nil
}

func timespecOf(ts unix.Timespec) types.Timespec {
	sec, nsec := ts.Unix()
	return types.Timespec{Sec: sec, Nsec: int32(nsec)}
}
