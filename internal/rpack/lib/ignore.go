package lib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/denormal/go-gitignore"
)

// IgnoreFilename is the name of the optional file, at the root of a packed
// directory, holding gitignore-style patterns of entries to leave out.
const IgnoreFilename = ".rpackignore"

// IgnoreMatcher decides which entries below a pack root are excluded. A nil
// *IgnoreMatcher ignores nothing.
type IgnoreMatcher struct {
	root    string
	matcher gitignore.GitIgnore
}

// LoadIgnoreMatcher compiles root/.rpackignore. It returns a nil matcher
// (and no error) when the file does not exist, so packing a tree without an
// ignore file is unaffected.
func LoadIgnoreMatcher(root string) (*IgnoreMatcher, error) {
	content, err := os.ReadFile(filepath.Join(root, IgnoreFilename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", IgnoreFilename, err)
	}

	// The ignore file never ships inside the archive it configures.
	patterns := []string{"/" + IgnoreFilename}
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		// Accept Windows-style separators in hand-written patterns.
		patterns = append(patterns, strings.ReplaceAll(trimmed, "\\", "/"))
	}

	matcher := gitignore.New(
		strings.NewReader(strings.Join(patterns, "\n")),
		root,
		// Skip unparsable lines instead of failing the whole file.
		func(gitignore.Error) bool { return true },
	)
	if matcher == nil {
		return nil, fmt.Errorf("compiling %s patterns", IgnoreFilename)
	}
	return &IgnoreMatcher{root: root, matcher: matcher}, nil
}

// Ignored reports whether path (absolute, or relative to the working
// directory) should be excluded from the archive.
func (m *IgnoreMatcher) Ignored(path string, isDir bool) bool {
	if m == nil {
		return false
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	// The gitignore library expects forward-slash separators, even on Windows.
	match := m.matcher.Relative(filepath.ToSlash(rel), isDir)
	return match != nil && match.Ignore()
}
