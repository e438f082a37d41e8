package lib

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/gingerrexayers/rpack-go/internal/rpack/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomContent(t *testing.T, n int) []byte {
	t.Helper()
	content := make([]byte, n)
	_, err := rand.Read(content)
	require.NoError(t, err, "Failed to generate random content")
	return content
}

func TestChunkContent(t *testing.T) {
	t.Run("Chunk a normal-sized buffer", func(t *testing.T) {
		// avgChunkSize is 8KB, so 64KB should produce several chunks.
		content := randomContent(t, 64*1024)

		chunks, err := ChunkContent(content)
		require.NoError(t, err)
		assert.Greater(t, len(chunks), 1, "Expected content to be split into multiple chunks")

		var reconstructed []byte
		for _, chunk := range chunks {
			assert.LessOrEqual(t, chunk.Size, int64(maxChunkSize))
			assert.Equal(t, GetHash(chunk.Data), chunk.Hash)
			assert.Equal(t, int64(len(chunk.Data)), chunk.Size)
			reconstructed = append(reconstructed, chunk.Data...)
		}
		assert.True(t, bytes.Equal(content, reconstructed), "Reconstructed content does not match")
	})

	t.Run("Chunk a small buffer (less than min chunk size)", func(t *testing.T) {
		content := []byte("this file is too small to be split.")

		chunks, err := ChunkContent(content)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, content, chunks[0].Data)
		assert.Equal(t, int64(len(content)), chunks[0].Size)
	})

	t.Run("Chunk an empty buffer", func(t *testing.T) {
		chunks, err := ChunkContent(nil)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

func TestDedupStats(t *testing.T) {
	shared := randomContent(t, 64*1024)
	unique := randomContent(t, 1000)

	archive := NewArchive(types.Timespec{},
		[]types.Directory{{Name: "r", ID: 2, ParentID: 1, IsRoot: true, Children: []types.Child{
			{ID: 3, Kind: types.KindFile}, {ID: 4, Kind: types.KindFile}, {ID: 5, Kind: types.KindFile}, {ID: 6, Kind: types.KindFile},
		}}},
		[]types.File{
			{Name: "copy1", ID: 3, Content: shared},
			{Name: "copy2", ID: 4, Content: shared},
			{Name: "small", ID: 5, Content: unique},
			{Name: "empty", ID: 6},
		},
		nil,
	)

	report, err := DedupStats(archive)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Files)
	assert.Equal(t, int64(2*len(shared)+len(unique)), report.TotalBytes)
	assert.Equal(t, int64(len(shared)+len(unique)), report.UniqueBytes)
	assert.Equal(t, report.Chunks, 2*(report.UniqueChunks-1)+1)
}
