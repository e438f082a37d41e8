package commands_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureStdout redirects os.Stdout to an in-memory buffer while f runs and
// returns what was written.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	f()

	_ = w.Close()
	os.Stdout = oldStdout
	return <-outC
}

// createSourceTree builds root/{a.txt="hi", sub/{b.txt="bye"}} with a few
// non-default permission bits.
func createSourceTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "root")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("bye"), 0o644))
	require.NoError(t, os.Chmod(filepath.Join(root, "a.txt"), 0o740))
	require.NoError(t, os.Chmod(filepath.Join(root, "sub"), 0o750))
	return root
}
