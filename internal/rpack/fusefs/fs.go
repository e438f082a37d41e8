package fusefs

import (
	"syscall"
	"time"

	"github.com/gingerrexayers/rpack-go/internal/rpack/types"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// FileSystem implements fuse.RawFileSystem on top of an Adapter. Opcodes
// other than the ones defined here fall through to go-fuse's default
// implementation, which answers ENOSYS.
type FileSystem struct {
	fuse.RawFileSystem

	adapter *Adapter
	timeout time.Duration
}

var _ fuse.RawFileSystem = (*FileSystem)(nil)

// NewFileSystem wraps adapter in a raw filesystem ready to be mounted.
func NewFileSystem(adapter *Adapter) *FileSystem {
	return &FileSystem{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		adapter:       adapter,
		timeout:       timeoutOf(adapter.Archive().Epoch),
	}
}

// timeoutOf turns the archive's epoch into a reply validity duration.
func timeoutOf(ts types.Timespec) time.Duration {
	if ts.Sec < 0 || (ts.Sec == 0 && ts.Nsec <= 0) {
		return 0
	}
	return time.Duration(ts.Sec)*time.Second + time.Duration(ts.Nsec)
}

func (fs *FileSystem) String() string {
	return "rpack"
}

func (fs *FileSystem) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	attr, errno := fs.adapter.Lookup(header.NodeId, name)
	if errno != 0 {
		return fuse.Status(errno)
	}
	out.NodeId = attr.Ino
	out.Attr = attr
	out.SetEntryTimeout(fs.timeout)
	out.SetAttrTimeout(fs.timeout)
	return fuse.OK
}

// Forget is a no-op: nodes live as long as the archive.
func (fs *FileSystem) Forget(nodeid, nlookup uint64) {}

func (fs *FileSystem) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	attr, errno := fs.adapter.GetAttr(input.NodeId)
	if errno != 0 {
		return fuse.Status(errno)
	}
	out.Attr = attr
	out.SetTimeout(fs.timeout)
	return fuse.OK
}

func (fs *FileSystem) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	if input.Flags&syscall.O_ACCMODE != syscall.O_RDONLY {
		return fuse.EROFS
	}
	out.Fh = 0
	return fuse.OK
}

func (fs *FileSystem) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	data, errno := fs.adapter.Read(input.NodeId, int64(input.Offset), int(input.Size))
	if errno != 0 {
		return nil, fuse.Status(errno)
	}
	return fuse.ReadResultData(data), fuse.OK
}

func (fs *FileSystem) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	out.Fh = 0
	return fuse.OK
}

func (fs *FileSystem) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	entries, errno := fs.adapter.ReadDir(input.NodeId, input.Offset)
	if errno != 0 {
		return fuse.Status(errno)
	}
	for _, e := range entries {
		if !out.AddDirEntry(e) {
			break
		}
	}
	return fuse.OK
}
