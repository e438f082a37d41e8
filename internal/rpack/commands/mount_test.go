package commands_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gingerrexayers/rpack-go/internal/rpack/commands"
	"github.com/gingerrexayers/rpack-go/internal/rpack/fusefs"
	"github.com/gingerrexayers/rpack-go/internal/rpack/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

func TestMountCommandRunsScript(t *testing.T) {
	fuseAvailable(t)

	source := createSourceTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(source, "startup.sh"),
		[]byte("cat a.txt sub/b.txt > \"$RPACK_TEST_OUT\"\n"), 0o755))
	archivePath := packSource(t, source)

	out := filepath.Join(t.TempDir(), "script.out")
	t.Setenv("RPACK_TEST_OUT", out)
	mountpoint := filepath.Join(t.TempDir(), "fusemount")

	var mountErr error
	captureStdout(t, func() {
		mountErr = commands.Mount(context.Background(), archivePath, commands.MountOptions{
			Mountpoint: mountpoint,
			FsName:     fusefs.DefaultFsName,
			Script:     "startup.sh",
		})
	})
	if mountErr != nil {
		if _, statErr := os.Stat(out); os.IsNotExist(statErr) {
			t.Skipf("skipping: cannot mount FUSE filesystem: %v", mountErr)
		}
	}
	require.NoError(t, mountErr)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hibye", string(data))

	_, err = os.Stat(mountpoint)
	assert.True(t, os.IsNotExist(err), "the mountpoint it created is removed")
}

func TestMountCommandStopsOnCancel(t *testing.T) {
	fuseAvailable(t)

	archivePath := packSource(t, createSourceTree(t))
	mountpoint := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var mountErr error
	captureStdout(t, func() {
		mountErr = commands.Mount(ctx, archivePath, commands.MountOptions{Mountpoint: mountpoint})
	})
	if mountErr != nil {
		t.Skipf("skipping: cannot mount FUSE filesystem: %v", mountErr)
	}

	_, err := os.Stat(mountpoint)
	assert.NoError(t, err, "a pre-existing mountpoint is kept")
}

func TestMountCommandRejectsBadArchive(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.blob")
	require.NoError(t, os.WriteFile(bad, []byte("not an archive"), 0o644))
	mountpoint := filepath.Join(t.TempDir(), "fusemount")

	err := commands.Mount(context.Background(), bad, commands.MountOptions{Mountpoint: mountpoint})
	assert.ErrorIs(t, err, lib.ErrMalformed)

	_, statErr := os.Stat(mountpoint)
	assert.True(t, os.IsNotExist(statErr), "no mountpoint is created for a bad archive")
}

func TestLoadArchive(t *testing.T) {
	archive, err := commands.LoadArchive(packSource(t, createSourceTree(t)))
	require.NoError(t, err)
	assert.Len(t, archive.Files, 2)

	_, err = commands.LoadArchive(filepath.Join(t.TempDir(), "missing.blob"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
