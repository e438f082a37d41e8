package lib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashing(t *testing.T) {
	// BLAKE3-256 of the empty input.
	const emptyHash = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"

	writeFile := func(t *testing.T, content []byte) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "testfile.dat")
		require.NoError(t, os.WriteFile(path, content, 0644))
		return path
	}

	t.Run("GetHash for empty content", func(t *testing.T) {
		assert.Equal(t, emptyHash, GetHash(nil))
		assert.Equal(t, emptyHash, GetHash([]byte{}))
	})

	t.Run("GetHash is deterministic and content sensitive", func(t *testing.T) {
		a := GetHash([]byte("hello world"))
		assert.Len(t, a, 64)
		assert.Equal(t, a, GetHash([]byte("hello world")))
		assert.NotEqual(t, a, GetHash([]byte("hello world!")))
	})

	t.Run("GetFileHash matches GetHash", func(t *testing.T) {
		content := []byte("hello world")
		hash, err := GetFileHash(writeFile(t, content))
		require.NoError(t, err)
		assert.Equal(t, GetHash(content), hash)
	})

	t.Run("GetFileHash for empty file", func(t *testing.T) {
		hash, err := GetFileHash(writeFile(t, nil))
		require.NoError(t, err)
		assert.Equal(t, emptyHash, hash)
	})

	t.Run("GetFileHash for non-existent file", func(t *testing.T) {
		_, err := GetFileHash(filepath.Join(t.TempDir(), "this_does_not_exist.txt"))
		require.Error(t, err)
		assert.True(t, os.IsNotExist(err), "got %v", err)
	})
}
