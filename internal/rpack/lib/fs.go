package lib

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteArchiveFile encodes archive and writes it to path. The bytes go to a
// temporary file in the same directory first, so a failed write never leaves
// a truncated archive behind. An existing file at path is replaced.
func WriteArchiveFile(archive *Archive, path string) (int, error) {
	data := Encode(archive)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".rpack-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, err
	}
	// Ensure the data is written to stable storage.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, err
	}
	return len(data), nil
}

// ReadArchiveFile loads and decodes the archive stored at path.
func ReadArchiveFile(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	archive, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return archive, nil
}
