// Package fusefs serves an rpack archive as a read-only FUSE filesystem.
//
// The Adapter answers the four lookup-style operations directly from the
// in-memory archive and knows nothing about the kernel protocol beyond the
// reply types. FileSystem binds an Adapter to go-fuse's raw protocol
// interface and Mount wires it to a mountpoint.
package fusefs

import (
	"syscall"

	"github.com/gingerrexayers/rpack-go/internal/rpack/lib"
	"github.com/gingerrexayers/rpack-go/internal/rpack/types"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"
)

// RootSentinel is the node id the kernel uses for the mount root.
const RootSentinel = lib.MountRootID

// ReadPolicy decides how much of a file a read returns.
type ReadPolicy int

const (
	// ReadClamp returns at most the requested number of bytes.
	ReadClamp ReadPolicy = iota
	// ReadWhole returns everything from the offset to the end of the file,
	// whatever size was requested.
	ReadWhole
)

func (p ReadPolicy) String() string {
	if p == ReadWhole {
		return "whole"
	}
	return "clamp"
}

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	ReadPolicy ReadPolicy

	// Logger receives invariant violations. If nil, a no-op logger is used.
	Logger *zap.Logger
}

// Adapter translates filesystem requests into archive lookups. The archive
// is never mutated, so an Adapter is safe for concurrent use.
type Adapter struct {
	archive *lib.Archive
	policy  ReadPolicy
	log     *zap.Logger
}

// NewAdapter creates an Adapter serving archive, which should already be validated.
func NewAdapter(archive *lib.Archive, options AdapterOptions) *Adapter {
	log := options.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{archive: archive, policy: options.ReadPolicy, log: log}
}

// Archive returns the archive being served.
func (a *Adapter) Archive() *lib.Archive {
	return a.archive
}

// resolve maps the mount-root sentinel onto the archive's root directory id.
func (a *Adapter) resolve(id uint64) uint64 {
	if id != RootSentinel {
		return id
	}
	if root, ok := a.archive.Root(); ok {
		return root.ID
	}
	return id
}

// Lookup finds the child called name in directory parent and returns its
// attributes. Children are scanned in stored order and the first match wins.
func (a *Adapter) Lookup(parent uint64, name string) (fuse.Attr, syscall.Errno) {
	dirID := a.resolve(parent)
	dir, ok := a.archive.Directory(dirID)
	if !ok {
		a.log.Error("lookup in unknown directory",
			zap.Uint64("parent", parent), zap.String("name", name))
		return fuse.Attr{}, syscall.EIO
	}

	for _, child := range dir.Children {
		childName, ok := a.archive.ChildName(child)
		if !ok {
			a.log.Error("directory lists a missing child",
				zap.Uint64("dir", dir.ID), zap.Uint64("child", child.ID), zap.Stringer("kind", child.Kind))
			return fuse.Attr{}, syscall.EIO
		}
		if childName != name {
			continue
		}
		attr, ok := a.archive.Attribute(child.ID)
		if !ok {
			a.log.Error("child has no attribute record", zap.Uint64("child", child.ID))
			return fuse.Attr{}, syscall.EIO
		}
		return ToFuseAttr(attr), 0
	}
	return fuse.Attr{}, syscall.ENOENT
}

// GetAttr returns the attribute record stored for id. The sentinel has its
// own record and is not redirected.
func (a *Adapter) GetAttr(id uint64) (fuse.Attr, syscall.Errno) {
	attr, ok := a.archive.Attribute(id)
	if !ok {
		return fuse.Attr{}, syscall.ENOENT
	}
	return ToFuseAttr(attr), 0
}

// Read returns file content starting at offset. An offset at or past the
// end yields an empty slice.
func (a *Adapter) Read(id uint64, offset int64, size int) ([]byte, syscall.Errno) {
	file, ok := a.archive.File(id)
	if !ok {
		return nil, syscall.ENOENT
	}
	if offset < 0 || offset >= int64(len(file.Content)) {
		return []byte{}, 0
	}
	data := file.Content[offset:]
	if a.policy == ReadClamp && size >= 0 && size < len(data) {
		data = data[:size]
	}
	return data, 0
}

// ReadDir lists directory id starting at offset. Offset 0 starts with ".",
// offsets below 2 include "..", and children are taken from index offset of
// the child list. Every entry carries the cookie to resume after it.
func (a *Adapter) ReadDir(id uint64, offset uint64) ([]fuse.DirEntry, syscall.Errno) {
	dirID := a.resolve(id)
	dir, ok := a.archive.Directory(dirID)
	if !ok {
		return nil, syscall.ENOENT
	}

	var entries []fuse.DirEntry
	if offset == 0 {
		entries = append(entries, fuse.DirEntry{Name: ".", Ino: dir.ID, Mode: syscall.S_IFDIR, Off: 1})
	}
	if offset < 2 {
		parent := dir.ParentID
		if dir.IsRoot {
			parent = dir.ID
		}
		entries = append(entries, fuse.DirEntry{Name: "..", Ino: parent, Mode: syscall.S_IFDIR, Off: 2})
	}

	for i := offset; i < uint64(len(dir.Children)); i++ {
		child := dir.Children[i]
		name, ok := a.archive.ChildName(child)
		if !ok {
			a.log.Error("directory lists a missing child",
				zap.Uint64("dir", dir.ID), zap.Uint64("child", child.ID), zap.Stringer("kind", child.Kind))
			return nil, syscall.EIO
		}
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Ino:  child.ID,
			Mode: modeType(child.Kind),
			Off:  i + offset + 1,
		})
	}
	return entries, 0
}

func modeType(kind types.Kind) uint32 {
	if kind == types.KindFile {
		return syscall.S_IFREG
	}
	return syscall.S_IFDIR
}

// ToFuseAttr converts a stored attribute record to the protocol's form.
func ToFuseAttr(attr *types.Attribute) fuse.Attr {
	return fuse.Attr{
		Ino:       attr.ID,
		Size:      attr.Size,
		Blocks:    0,
		Atime:     uint64(attr.Atime.Sec),
		Atimensec: uint32(attr.Atime.Nsec),
		Mtime:     uint64(attr.Mtime.Sec),
		Mtimensec: uint32(attr.Mtime.Nsec),
		Ctime:     uint64(attr.Ctime.Sec),
		Ctimensec: uint32(attr.Ctime.Nsec),
		Mode:      modeType(attr.Kind) | uint32(attr.Perm),
		Nlink:     attr.Nlink,
		Owner:     fuse.Owner{Uid: attr.UID, Gid: attr.GID},
		Rdev:      attr.Rdev,
	}
}
