package lib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupIgnoreTest creates a temporary directory and writes a .rpackignore file
// with the provided content for isolated testing.
func setupIgnoreTest(t *testing.T, ignoreContent string) string {
	t.Helper()
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, IgnoreFilename), []byte(ignoreContent), 0644)
	require.NoError(t, err, "Failed to create .rpackignore file")
	return tmpDir
}

func TestIgnoreMatcher(t *testing.T) {
	testCases := []struct {
		name            string
		ignoreContent   string
		pathToCheck     string
		isDir           bool
		shouldBeIgnored bool
	}{
		{
			name:            "Ignore file always excludes itself",
			ignoreContent:   "",
			pathToCheck:     IgnoreFilename,
			shouldBeIgnored: true,
		},
		{
			name:            "Nested file with the ignore file's name is kept",
			ignoreContent:   "",
			pathToCheck:     "sub/" + IgnoreFilename,
			shouldBeIgnored: false,
		},
		{
			name:            "Specific file match",
			ignoreContent:   "secret.txt",
			pathToCheck:     "secret.txt",
			shouldBeIgnored: true,
		},
		{
			name:            "Glob pattern match (*.log)",
			ignoreContent:   "*.log",
			pathToCheck:     "system.log",
			shouldBeIgnored: true,
		},
		{
			name:            "Glob pattern in subdir",
			ignoreContent:   "*.log",
			pathToCheck:     "logs/system.log",
			shouldBeIgnored: true,
		},
		{
			name:            "Directory pattern matches the directory itself",
			ignoreContent:   "build/",
			pathToCheck:     "build",
			isDir:           true,
			shouldBeIgnored: true,
		},
		{
			name:            "Negation pattern (!)",
			ignoreContent:   "*.log\n!important.log",
			pathToCheck:     "important.log",
			shouldBeIgnored: false,
		},
		{
			name:            "Comment and empty lines are skipped",
			ignoreContent:   "# This is a comment\n\n  \n\n*.tmp",
			pathToCheck:     "some.tmp",
			shouldBeIgnored: true,
		},
		{
			name:            "Path not in ignore list",
			ignoreContent:   "*.log",
			pathToCheck:     "src/main.go",
			shouldBeIgnored: false,
		},
		{
			name:            "Windows-style separators in pattern",
			ignoreContent:   "dist\\main.js",
			pathToCheck:     "dist/main.js",
			shouldBeIgnored: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			testDir := setupIgnoreTest(t, tc.ignoreContent)
			matcher, err := LoadIgnoreMatcher(testDir)
			require.NoError(t, err)
			require.NotNil(t, matcher)

			fullPath := filepath.Join(testDir, filepath.FromSlash(tc.pathToCheck))
			assert.Equal(t, tc.shouldBeIgnored, matcher.Ignored(fullPath, tc.isDir),
				"Path '%s' with ignore content:\n---\n%s\n---", tc.pathToCheck, tc.ignoreContent)
		})
	}
}

func TestIgnoreMatcherWithoutFile(t *testing.T) {
	testDir := t.TempDir()

	matcher, err := LoadIgnoreMatcher(testDir)
	require.NoError(t, err)
	assert.Nil(t, matcher, "no ignore file should yield a nil matcher")

	// A nil matcher ignores nothing.
	assert.False(t, matcher.Ignored(filepath.Join(testDir, "anything.log"), false))
}

func TestIgnoreMatcherOutsideRoot(t *testing.T) {
	testDir := setupIgnoreTest(t, "*")
	matcher, err := LoadIgnoreMatcher(testDir)
	require.NoError(t, err)

	assert.False(t, matcher.Ignored(testDir, true), "the root itself is never ignored")
	assert.False(t, matcher.Ignored(filepath.Join(filepath.Dir(testDir), "elsewhere"), false))
	assert.False(t, matcher.Ignored(filepath.Dir(testDir), true))

	// Names that merely start with two dots are inside the root.
	assert.True(t, matcher.Ignored(filepath.Join(testDir, "..foo"), false))
	assert.True(t, matcher.Ignored(filepath.Join(testDir, "..hidden", "file"), false))
}
