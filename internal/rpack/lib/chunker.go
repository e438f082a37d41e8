package lib

import (
	"bytes"
	"io"

	"github.com/aclements/go-rabin/rabin"
	"github.com/gingerrexayers/rpack-go/internal/rpack/types"
)

// Constants for the Rabin chunker configuration.
const (
	minChunkSize = 4 * 1024
	avgChunkSize = 8 * 1024
	maxChunkSize = 16 * 1024

	// A 64-bit irreducible polynomial over GF(2).
	defaultPoly       = rabin.Poly64
	defaultWindowSize = 64
)

// rabinTable is expensive to build, so it is computed once and shared.
var rabinTable = rabin.NewTable(defaultPoly, defaultWindowSize)

// ChunkContent splits content into variable-sized chunks using Rabin
// fingerprinting. Chunks alias content; nothing is copied.
func ChunkContent(content []byte) ([]types.Chunk, error) {
	if len(content) == 0 {
		return []types.Chunk{}, nil
	}

	chunker := rabin.NewChunker(rabinTable, bytes.NewReader(content), minChunkSize, avgChunkSize, maxChunkSize)

	var chunks []types.Chunk
	var offset int
	for {
		length, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		data := content[offset : offset+length]
		offset += length
		chunks = append(chunks, types.Chunk{Hash: GetHash(data), Size: int64(length), Data: data})
	}

	// Content shorter than the minimum chunk size may yield no boundary at all.
	if len(chunks) == 0 {
		chunks = append(chunks, types.Chunk{Hash: GetHash(content), Size: int64(len(content)), Data: content})
	}
	return chunks, nil
}

// DedupStats chunks every file of the archive and reports how many bytes a
// chunk-addressed store would actually need to keep.
func DedupStats(archive *Archive) (types.DedupReport, error) {
	report := types.DedupReport{Files: len(archive.Files)}
	seen := make(map[string]struct{})
	for i := range archive.Files {
		chunks, err := ChunkContent(archive.Files[i].Content)
		if err != nil {
			return types.DedupReport{}, err
		}
		for _, c := range chunks {
			report.Chunks++
			report.TotalBytes += c.Size
			if _, dup := seen[c.Hash]; dup {
				continue
			}
			seen[c.Hash] = struct{}{}
			report.UniqueChunks++
			report.UniqueBytes += c.Size
		}
	}
	return report, nil
}
