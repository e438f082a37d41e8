package lib

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// GetHash calculates the BLAKE3-256 digest of an in-memory byte slice and
// returns it as a lowercase hex-encoded string.
func GetHash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// GetFileHash streams a file from disk through BLAKE3 and returns the
// lowercase hex-encoded digest. Archives can be large, so the file is never
// loaded into memory as a whole.
func GetFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
