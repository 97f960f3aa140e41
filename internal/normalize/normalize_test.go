package normalize

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/pathrules"

	"github.com/meigma/archiver/internal/archivetype"
)

func newTestFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fsys := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
	}
	return fsys
}

func names(entries []archivetype.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func readEntry(t *testing.T, e archivetype.Entry) string {
	t.Helper()

	rc, err := e.Open()
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

// closeTracker counts Close calls on a caller reader.
type closeTracker struct {
	io.Reader
	closes atomic.Int32
}

func (c *closeTracker) Close() error {
	c.closes.Add(1)
	return nil
}

func TestNormalizeFilePath(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t, map[string]string{"/src/file": "file content"})
	set, err := Normalize(context.Background(), []Item{{Kind: KindPath, Data: "/src/file"}}, Options{FS: fsys})
	require.NoError(t, err)

	require.Len(t, set.Entries, 1)
	e := set.Entries[0]
	assert.Equal(t, "file", e.Name)
	assert.Equal(t, archivetype.TypeFile, e.Type)
	assert.Equal(t, int64(12), e.Size)
	assert.Equal(t, "file content", readEntry(t, e))
}

func TestNormalizeDirectoryLexicalOrder(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t, map[string]string{
		"/src/dir/b.txt":       "b",
		"/src/dir/a.txt":       "a",
		"/src/dir/sub/c.txt":   "c",
		"/src/dir/sub/deep/d":  "d",
		"/src/dir/aa/file.txt": "aa",
	})
	set, err := Normalize(context.Background(), []Item{{Kind: KindPath, Data: "/src/dir"}}, Options{FS: fsys})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"dir",
		"dir/a.txt",
		"dir/aa",
		"dir/aa/file.txt",
		"dir/b.txt",
		"dir/sub",
		"dir/sub/c.txt",
		"dir/sub/deep",
		"dir/sub/deep/d",
	}, names(set.Entries))
	assert.Equal(t, archivetype.TypeDirectory, set.Entries[0].Type)
	assert.Nil(t, set.Entries[0].Open)
}

func TestNormalizePositionalNames(t *testing.T) {
	t.Parallel()

	items := []Item{
		{Kind: KindBytes, Data: []byte("zero")},
		{Kind: KindBytes, Data: []byte("one")},
		{Kind: KindBytes, Data: []byte("two")},
	}
	set, err := Normalize(context.Background(), items, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "2"}, names(set.Entries))
	assert.Equal(t, "two", readEntry(t, set.Entries[2]))
}

func TestNormalizePositionalNamesSkipNamed(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t, map[string]string{"/src/file": "x"})
	items := []Item{
		{Kind: KindText, Data: "first"},
		{Kind: KindDescriptor, Name: "named", Type: archivetype.TypeBuffer, Data: []byte("named")},
		{Kind: KindPath, Data: "/src/file"},
		{Kind: KindReader, Data: strings.NewReader("stream")},
	}
	set, err := Normalize(context.Background(), items, Options{FS: fsys})
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "named", "file", "1"}, names(set.Entries))
}

func TestNormalizeMixedDescriptors(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t, map[string]string{
		"/src/file":         "file",
		"/src/dir/nested":   "nested",
		"/src/file1.txt":    "stream",
		"/src/unused/other": "unused",
	})
	stream, err := fsys.Open("/src/file1.txt")
	require.NoError(t, err)

	items := []Item{
		{Kind: KindDescriptor, Name: "file", Type: archivetype.TypeFile, Data: "/src/file"},
		{Kind: KindDescriptor, Name: "dir", Type: archivetype.TypeDirectory, Data: "/src/dir"},
		{Kind: KindDescriptor, Name: "file1.txt", Type: archivetype.TypeStream, Data: stream},
		{Kind: KindDescriptor, Name: "file2", Type: archivetype.TypeBuffer, Data: []byte("buffer")},
		{Kind: KindDescriptor, Name: "file3.txt", Type: archivetype.TypeString, Data: "string"},
	}
	set, err := Normalize(context.Background(), items, Options{FS: fsys})
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, []string{"file", "dir", "dir/nested", "file1.txt", "file2", "file3.txt"}, names(set.Entries))

	types := make([]archivetype.Type, 0, len(set.Entries))
	for _, e := range set.Entries {
		types = append(types, e.Type)
	}
	assert.Equal(t, []archivetype.Type{
		archivetype.TypeFile,
		archivetype.TypeDirectory,
		archivetype.TypeFile,
		archivetype.TypeStream,
		archivetype.TypeBuffer,
		archivetype.TypeString,
	}, types)
	assert.Equal(t, int64(-1), set.Entries[3].Size)
	assert.Equal(t, "stream", readEntry(t, set.Entries[3]))
}

func TestNormalizeDescriptorNameRenamesDirectory(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t, map[string]string{"/src/dir/a": "a"})
	items := []Item{{Kind: KindDescriptor, Name: "renamed/root", Type: archivetype.TypeDirectory, Data: "/src/dir"}}
	set, err := Normalize(context.Background(), items, Options{FS: fsys})
	require.NoError(t, err)
	assert.Equal(t, []string{"renamed/root", "renamed/root/a"}, names(set.Entries))
}

func TestNormalizeNotFound(t *testing.T) {
	t.Parallel()

	_, err := Normalize(context.Background(), []Item{{Kind: KindPath, Data: "/missing"}}, Options{FS: afero.NewMemMapFs()})
	assert.ErrorIs(t, err, archivetype.ErrNotFound)
}

func TestNormalizeInvalidInput(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t, map[string]string{"/src/file": "x", "/src/dir/a": "a"})
	tests := []struct {
		name  string
		items []Item
	}{
		{"no items", nil},
		{"descriptor without data", []Item{{Kind: KindDescriptor, Name: "x", Type: archivetype.TypeBuffer}}},
		{"buffer with string data", []Item{{Kind: KindDescriptor, Name: "x", Type: archivetype.TypeBuffer, Data: "text"}}},
		{"string with bytes data", []Item{{Kind: KindDescriptor, Name: "x", Type: archivetype.TypeString, Data: []byte("b")}}},
		{"stream with bytes data", []Item{{Kind: KindDescriptor, Name: "x", Type: archivetype.TypeStream, Data: []byte("b")}}},
		{"unsupported data", []Item{{Kind: KindDescriptor, Name: "x", Data: 42}}},
		{"file type on directory", []Item{{Kind: KindDescriptor, Type: archivetype.TypeFile, Data: "/src/dir"}}},
		{"directory type on file", []Item{{Kind: KindDescriptor, Type: archivetype.TypeDirectory, Data: "/src/file"}}},
		{"traversal name", []Item{{Kind: KindDescriptor, Name: "../escape", Type: archivetype.TypeString, Data: "x"}}},
		{"absolute name", []Item{{Kind: KindDescriptor, Name: "/etc/passwd", Type: archivetype.TypeString, Data: "x"}}},
		{"duplicate names", []Item{{Kind: KindPath, Data: "/src/file"}, {Kind: KindDescriptor, Name: "file", Data: []byte("dup")}}},
		{"nil buffer", []Item{{Kind: KindBytes}}},
		{"empty path", []Item{{Kind: KindPath, Data: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(context.Background(), tt.items, Options{FS: fsys})
			assert.ErrorIs(t, err, archivetype.ErrInvalidInput)
		})
	}
}

func TestNormalizeClosesReadersOnFailure(t *testing.T) {
	t.Parallel()

	tracker := &closeTracker{Reader: strings.NewReader("data")}
	items := []Item{
		{Kind: KindReader, Data: tracker},
		{Kind: KindPath, Data: "/missing"},
	}
	_, err := Normalize(context.Background(), items, Options{FS: afero.NewMemMapFs()})
	require.ErrorIs(t, err, archivetype.ErrNotFound)
	assert.Equal(t, int32(1), tracker.closes.Load())
}

func TestSetCloseReleasesExactlyOnce(t *testing.T) {
	t.Parallel()

	consumed := &closeTracker{Reader: strings.NewReader("consumed")}
	unconsumed := &closeTracker{Reader: strings.NewReader("unconsumed")}
	set, err := Normalize(context.Background(), []Item{
		{Kind: KindReader, Data: consumed},
		{Kind: KindReader, Data: unconsumed},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "consumed", readEntry(t, set.Entries[0]))
	assert.Equal(t, int32(1), consumed.closes.Load())

	require.NoError(t, set.Close())
	require.NoError(t, set.Close())
	assert.Equal(t, int32(1), consumed.closes.Load())
	assert.Equal(t, int32(1), unconsumed.closes.Load())

	_, err = set.Entries[1].Open()
	assert.ErrorIs(t, err, archivetype.ErrInvalidInput)
}

func TestNormalizeStreamOpensOnce(t *testing.T) {
	t.Parallel()

	set, err := Normalize(context.Background(), []Item{{Kind: KindReader, Data: bytes.NewReader([]byte("x"))}}, Options{})
	require.NoError(t, err)
	defer set.Close()

	rc, err := set.Entries[0].Open()
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	_, err = set.Entries[0].Open()
	assert.ErrorIs(t, err, archivetype.ErrInvalidInput)
}

func TestNormalizeRules(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t, map[string]string{
		"/src/dir/keep.txt":     "keep",
		"/src/dir/drop.log":     "drop",
		"/src/dir/logs/app.txt": "app",
	})
	set, err := Normalize(context.Background(), []Item{{Kind: KindPath, Data: "/src/dir"}}, Options{
		FS: fsys,
		Rules: []pathrules.Rule{
			{Action: pathrules.ActionExclude, Pattern: "*.log"},
		},
		MatcherOptions: pathrules.MatcherOptions{DefaultAction: pathrules.ActionInclude},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dir", "dir/keep.txt", "dir/logs", "dir/logs/app.txt"}, names(set.Entries))
}

func TestNormalizeCancelled(t *testing.T) {
	t.Parallel()

	fsys := newTestFS(t, map[string]string{"/src/dir/a": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Normalize(ctx, []Item{{Kind: KindPath, Data: "/src/dir"}}, Options{FS: fsys})
	assert.ErrorIs(t, err, context.Canceled)
}
