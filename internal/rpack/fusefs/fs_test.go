package fusefs

import (
	"syscall"
	"testing"
	"time"

	"github.com/gingerrexayers/rpack-go/internal/rpack/types"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemRequests(t *testing.T) {
	fs := NewFileSystem(NewAdapter(testArchive(), AdapterOptions{ReadPolicy: ReadClamp}))

	t.Run("lookup fills the entry", func(t *testing.T) {
		var out fuse.EntryOut
		status := fs.Lookup(nil, &fuse.InHeader{NodeId: RootSentinel}, "a.txt", &out)
		require.Equal(t, fuse.OK, status)
		assert.Equal(t, uint64(3), out.NodeId)
		assert.Equal(t, uint64(5), out.Attr.Size)
		assert.Zero(t, out.EntryValid)
		assert.Zero(t, out.AttrValid)
	})

	t.Run("lookup miss", func(t *testing.T) {
		var out fuse.EntryOut
		status := fs.Lookup(nil, &fuse.InHeader{NodeId: RootSentinel}, "missing", &out)
		assert.Equal(t, fuse.ENOENT, status)
	})

	t.Run("getattr", func(t *testing.T) {
		var out fuse.AttrOut
		status := fs.GetAttr(nil, &fuse.GetAttrIn{InHeader: fuse.InHeader{NodeId: 4}}, &out)
		require.Equal(t, fuse.OK, status)
		assert.Equal(t, uint32(syscall.S_IFDIR|0o750), out.Attr.Mode)

		status = fs.GetAttr(nil, &fuse.GetAttrIn{InHeader: fuse.InHeader{NodeId: 99}}, &out)
		assert.Equal(t, fuse.ENOENT, status)
	})

	t.Run("read", func(t *testing.T) {
		result, status := fs.Read(nil, &fuse.ReadIn{InHeader: fuse.InHeader{NodeId: 3}, Offset: 1, Size: 3}, make([]byte, 3))
		require.Equal(t, fuse.OK, status)
		data, status := result.Bytes(nil)
		require.Equal(t, fuse.OK, status)
		assert.Equal(t, "ell", string(data))

		_, status = fs.Read(nil, &fuse.ReadIn{InHeader: fuse.InHeader{NodeId: 4}}, nil)
		assert.Equal(t, fuse.ENOENT, status)
	})

	t.Run("open is read-only", func(t *testing.T) {
		var out fuse.OpenOut
		assert.Equal(t, fuse.OK, fs.Open(nil, &fuse.OpenIn{InHeader: fuse.InHeader{NodeId: 3}, Flags: syscall.O_RDONLY}, &out))
		assert.Equal(t, fuse.EROFS, fs.Open(nil, &fuse.OpenIn{InHeader: fuse.InHeader{NodeId: 3}, Flags: syscall.O_WRONLY}, &out))
		assert.Equal(t, fuse.EROFS, fs.Open(nil, &fuse.OpenIn{InHeader: fuse.InHeader{NodeId: 3}, Flags: syscall.O_RDWR}, &out))
		assert.Equal(t, fuse.OK, fs.OpenDir(nil, &fuse.OpenIn{InHeader: fuse.InHeader{NodeId: 2}}, &out))
	})

	t.Run("everything else is unsupported", func(t *testing.T) {
		status := fs.Mkdir(nil, &fuse.MkdirIn{InHeader: fuse.InHeader{NodeId: 2}}, "new", &fuse.EntryOut{})
		assert.Equal(t, fuse.ENOSYS, status)
		status = fs.Unlink(nil, &fuse.InHeader{NodeId: 2}, "a.txt")
		assert.Equal(t, fuse.ENOSYS, status)
	})
}

func TestTimeoutOf(t *testing.T) {
	assert.Zero(t, timeoutOf(types.Timespec{}))
	assert.Zero(t, timeoutOf(types.Timespec{Sec: -1, Nsec: 5}))
	assert.Equal(t, 1500*time.Millisecond, timeoutOf(types.Timespec{Sec: 1, Nsec: 500000000}))
}
