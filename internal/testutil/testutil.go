// Package testutil provides directory tree helpers for tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Node is one element of a directory tree.
type Node struct {
	Dir     bool
	Content string
}

// WriteTree creates tree beneath root. Keys are slash-separated relative
// paths; keys ending in "/" are directories, everything else is a file
// with the mapped content. Parent directories are created as needed.
func WriteTree(t testing.TB, fsys afero.Fs, root string, tree map[string]string) {
	t.Helper()

	require.NoError(t, fsys.MkdirAll(root, 0o755))
	for name, content := range tree {
		path := filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(name, "/")))
		if strings.HasSuffix(name, "/") {
			require.NoError(t, fsys.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
	}
}

// ReadTree returns every directory and regular file beneath root keyed by
// slash-separated relative path. Root itself is not included.
func ReadTree(t testing.TB, fsys afero.Fs, root string) map[string]Node {
	t.Helper()

	tree := make(map[string]Node)
	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		switch {
		case info.IsDir():
			tree[rel] = Node{Dir: true}
		case info.Mode().IsRegular():
			b, err := afero.ReadFile(fsys, path)
			if err != nil {
				return err
			}
			tree[rel] = Node{Content: string(b)}
		}
		return nil
	})
	require.NoError(t, err)
	return tree
}

// AssertSameTree asserts that two directories hold the same structure and
// byte-identical file contents.
func AssertSameTree(t testing.TB, wantFS afero.Fs, want string, gotFS afero.Fs, got string) bool {
	t.Helper()

	return assert.Equal(t, ReadTree(t, wantFS, want), ReadTree(t, gotFS, got))
}
