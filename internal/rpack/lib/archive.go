// Package lib contains the core, reusable services for the rpack application:
// the archive model, its binary codec and the directory packer.
package lib

import (
	"errors"
	"fmt"

	"github.com/gingerrexayers/rpack-go/internal/rpack/types"
)

// ErrInvalidArchive is returned by Validate when the node graph breaks one
// of the archive invariants.
var ErrInvalidArchive = errors.New("invalid archive")

// Archive is the complete in-memory representation of a packed directory
// tree. It is built once (by a Packer or by Decode) and must not be mutated
// afterwards; all lookups are safe for concurrent use.
type Archive struct {
	// Epoch is used as the validity timeout of every filesystem reply.
	Epoch types.Timespec

	Directories []types.Directory
	Files       []types.File
	Attributes  []types.Attribute

	dirIndex  map[uint64]int
	fileIndex map[uint64]int
	attrIndex map[uint64]int
	rootIndex int
}

// NewArchive takes ownership of the given records and indexes them by id.
// When an id appears more than once in a collection the first record wins,
// which is the same answer a front-to-back scan would give.
func NewArchive(epoch types.Timespec, dirs []types.Directory, files []types.File, attrs []types.Attribute) *Archive {
	a := &Archive{
		Epoch:       epoch,
		Directories: dirs,
		Files:       files,
		Attributes:  attrs,
		dirIndex:    make(map[uint64]int, len(dirs)),
		fileIndex:   make(map[uint64]int, len(files)),
		attrIndex:   make(map[uint64]int, len(attrs)),
		rootIndex:   -1,
	}
	for i := range dirs {
		if _, ok := a.dirIndex[dirs[i].ID]; !ok {
			a.dirIndex[dirs[i].ID] = i
		}
		if dirs[i].IsRoot && a.rootIndex < 0 {
			a.rootIndex = i
		}
	}
	for i := range files {
		if _, ok := a.fileIndex[files[i].ID]; !ok {
			a.fileIndex[files[i].ID] = i
		}
	}
	for i := range attrs {
		if _, ok := a.attrIndex[attrs[i].ID]; !ok {
			a.attrIndex[attrs[i].ID] = i
		}
	}
	return a
}

// Directory returns the directory record with the given id.
func (a *Archive) Directory(id uint64) (*types.Directory, bool) {
	i, ok := a.dirIndex[id]
	if !ok {
		return nil, false
	}
	return &a.Directories[i], true
}

// File returns the file record with the given id.
func (a *Archive) File(id uint64) (*types.File, bool) {
	i, ok := a.fileIndex[id]
	if !ok {
		return nil, false
	}
	return &a.Files[i], true
}

// Attribute returns the attribute record for the given node id.
func (a *Archive) Attribute(id uint64) (*types.Attribute, bool) {
	i, ok := a.attrIndex[id]
	if !ok {
		return nil, false
	}
	return &a.Attributes[i], true
}

// Root returns the unique directory flagged as the archive root.
func (a *Archive) Root() (*types.Directory, bool) {
	if a.rootIndex < 0 {
		return nil, false
	}
	return &a.Directories[a.rootIndex], true
}

// ChildName resolves the name of a child entry through the record its kind
// tag points at.
func (a *Archive) ChildName(c types.Child) (string, bool) {
	if c.Kind == types.KindFile {
		f, ok := a.File(c.ID)
		if !ok {
			return "", false
		}
		return f.Name, true
	}
	d, ok := a.Directory(c.ID)
	if !ok {
		return "", false
	}
	return d.Name, true
}

// TotalContentSize is the sum of all file content lengths.
func (a *Archive) TotalContentSize() uint64 {
	var total uint64
	for i := range a.Files {
		total += uint64(len(a.Files[i].Content))
	}
	return total
}

// Validate checks the structural invariants of the node graph: exactly one
// root, every child resolves to a record of its tagged kind, and every
// directory and child id has exactly one attribute record. The child lists
// must also form a tree: no id is listed twice, the root is nobody's child,
// and every directory is reachable from the root.
func (a *Archive) Validate() error {
	roots := 0
	for i := range a.Directories {
		if a.Directories[i].IsRoot {
			roots++
		}
	}
	if roots != 1 {
		return fmt.Errorf("%w: expected exactly one root directory, found %d", ErrInvalidArchive, roots)
	}

	attrCount := make(map[uint64]int, len(a.Attributes))
	for i := range a.Attributes {
		attrCount[a.Attributes[i].ID]++
	}
	checkAttr := func(id uint64) error {
		if n := attrCount[id]; n != 1 {
			return fmt.Errorf("%w: node %d has %d attribute records, expected 1", ErrInvalidArchive, id, n)
		}
		return nil
	}

	root, _ := a.Root()
	listedBy := make(map[uint64]uint64)
	for i := range a.Directories {
		dir := &a.Directories[i]
		if err := checkAttr(dir.ID); err != nil {
			return err
		}
		for _, child := range dir.Children {
			if _, ok := a.ChildName(child); !ok {
				return fmt.Errorf("%w: directory %q (%d) lists missing %s %d",
					ErrInvalidArchive, dir.Name, dir.ID, child.Kind, child.ID)
			}
			if err := checkAttr(child.ID); err != nil {
				return err
			}
			if child.ID == root.ID {
				return fmt.Errorf("%w: directory %d lists the root as a child", ErrInvalidArchive, dir.ID)
			}
			if first, ok := listedBy[child.ID]; ok {
				return fmt.Errorf("%w: node %d is listed by directory %d and again by directory %d",
					ErrInvalidArchive, child.ID, first, dir.ID)
			}
			listedBy[child.ID] = dir.ID
		}
	}

	// With single listing in place, a directory cut off from the root can
	// only sit on a cycle or below one.
	reached := map[uint64]bool{root.ID: true}
	queue := []*types.Directory{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		for _, child := range dir.Children {
			if child.Kind != types.KindDirectory || reached[child.ID] {
				continue
			}
			reached[child.ID] = true
			sub, _ := a.Directory(child.ID)
			queue = append(queue, sub)
		}
	}
	for i := range a.Directories {
		if id := a.Directories[i].ID; !reached[id] {
			return fmt.Errorf("%w: directory %d is not reachable from the root", ErrInvalidArchive, id)
		}
	}
	return nil
}

// WalkFunc is called by Walk for every node below the root. relPath is the
// slash-free join of names from the root, built with the given separator.
type WalkFunc func(relPath string, depth int, child types.Child) error

// Walk visits the tree depth-first from the root in stored child order.
// Directories are reported before their contents.
func (a *Archive) Walk(sep string, fn WalkFunc) error {
	root, ok := a.Root()
	if !ok {
		return fmt.Errorf("%w: no root directory", ErrInvalidArchive)
	}
	return a.walk(root, "", sep, 0, fn, map[uint64]bool{root.ID: true})
}

func (a *Archive) walk(dir *types.Directory, prefix, sep string, depth int, fn WalkFunc, seen map[uint64]bool) error {
	for _, child := range dir.Children {
		name, ok := a.ChildName(child)
		if !ok {
			return fmt.Errorf("%w: directory %d lists missing %s %d", ErrInvalidArchive, dir.ID, child.Kind, child.ID)
		}
		relPath := name
		if prefix != "" {
			relPath = prefix + sep + name
		}
		if err := fn(relPath, depth, child); err != nil {
			return err
		}
		if child.Kind == types.KindDirectory {
			if seen[child.ID] {
				return fmt.Errorf("%w: directory %d is reachable twice", ErrInvalidArchive, child.ID)
			}
			seen[child.ID] = true
			sub, _ := a.Directory(child.ID)
			if err := a.walk(sub, relPath, sep, depth+1, fn, seen); err != nil {
				return err
			}
		}
	}
	return nil
}
