package lib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.blob")

	n, err := WriteArchiveFile(sampleArchive(), path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(n), info.Size())

	loaded, err := ReadArchiveFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleArchive().Directories, loaded.Directories)
	assert.Equal(t, sampleArchive().Files, loaded.Files)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestWriteArchiveFileReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.blob")
	require.NoError(t, os.WriteFile(path, []byte("stale contents that are longer than needed"), 0644))

	n, err := WriteArchiveFile(NewArchive(sampleArchive().Epoch, nil, nil, nil), path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, n)
	assert.Equal(t, Magic, string(data[:len(Magic)]))
}

func TestReadArchiveFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadArchiveFile(filepath.Join(t.TempDir(), "missing.blob"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.blob")
		require.NoError(t, os.WriteFile(path, []byte("not an archive"), 0644))

		archive, err := ReadArchiveFile(path)
		assert.Nil(t, archive)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Contains(t, err.Error(), path)
	})
}

func TestWriteArchiveFileMissingDirectory(t *testing.T) {
	_, err := WriteArchiveFile(sampleArchive(), filepath.Join(t.TempDir(), "nope", "out.blob"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
