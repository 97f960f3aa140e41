package testutil

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func TestWriteAndReadTree(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	WriteTree(t, fsys, "/root", map[string]string{
		"a.txt":       "a",
		"empty/":      "",
		"sub/b/c.txt": "c",
	})

	assert.Equal(t, map[string]Node{
		"a.txt":       {Content: "a"},
		"empty":       {Dir: true},
		"sub":         {Dir: true},
		"sub/b":       {Dir: true},
		"sub/b/c.txt": {Content: "c"},
	}, ReadTree(t, fsys, "/root"))

	other := afero.NewMemMapFs()
	WriteTree(t, other, "/copy", map[string]string{
		"a.txt":       "a",
		"empty/":      "",
		"sub/b/c.txt": "c",
	})
	AssertSameTree(t, fsys, "/root", other, "/copy")
}
