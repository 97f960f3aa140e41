package codec

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/archiver/internal/archivetype"
)

func bufferEntry(name, content string) *archivetype.Entry {
	data := []byte(content)
	return &archivetype.Entry{
		Name:    name,
		Type:    archivetype.TypeBuffer,
		Mode:    0o644,
		ModTime: time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC),
		Size:    int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func streamEntry(name, content string) *archivetype.Entry {
	e := bufferEntry(name, content)
	e.Type = archivetype.TypeStream
	e.Size = -1
	return e
}

func dirEntry(name string) *archivetype.Entry {
	return &archivetype.Entry{Name: name, Type: archivetype.TypeDirectory, Mode: 0o755}
}

func encode(t *testing.T, format Format, entries ...*archivetype.Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := NewWriter(format, &buf, WriterOptions{FS: afero.NewMemMapFs()})
	require.NoError(t, err)
	for _, e := range entries {
		_, err := w.WriteEntry(context.Background(), e)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

type decoded struct {
	dir     bool
	content string
}

func decode(t *testing.T, format Format, data []byte) map[string]decoded {
	t.Helper()

	out := make(map[string]decoded)
	if format.RandomAccess() {
		files, err := OpenRandom(format, bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		for _, f := range files {
			if f.Header.Dir {
				out[f.Header.Name] = decoded{dir: true}
				continue
			}
			rc, err := f.Open()
			require.NoError(t, err)
			content, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			out[f.Header.Name] = decoded{content: string(content)}
		}
		return out
	}

	r, err := NewReader(format, bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()
	for {
		hdr, content, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if hdr.Dir {
			out[hdr.Name] = decoded{dir: true}
			continue
		}
		b, err := io.ReadAll(content)
		require.NoError(t, err)
		out[hdr.Name] = decoded{content: string(b)}
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{FormatZip, FormatTar, FormatTarGzip, FormatTarZstd} {
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()

			data := encode(t, format,
				dirEntry("dir"),
				bufferEntry("dir/a.txt", "content of a"),
				streamEntry("dir/stream.txt", strings.Repeat("stream ", 500)),
				bufferEntry("empty", ""),
			)

			got := decode(t, format, data)
			assert.Equal(t, map[string]decoded{
				"dir/":           {dir: true},
				"dir/a.txt":      {content: "content of a"},
				"dir/stream.txt": {content: strings.Repeat("stream ", 500)},
				"empty":          {content: ""},
			}, got)
		})
	}
}

func TestTarPreservesModeAndTime(t *testing.T) {
	t.Parallel()

	e := bufferEntry("script.sh", "#!/bin/sh\n")
	e.Mode = 0o755
	data := encode(t, FormatTar, e)

	r, err := NewReader(FormatTar, bytes.NewReader(data))
	require.NoError(t, err)
	hdr, _, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o755), hdr.Mode)
	assert.True(t, hdr.ModTime.Equal(e.ModTime), "ModTime mismatch: expected %v, got %v", e.ModTime, hdr.ModTime)
	assert.Equal(t, int64(10), hdr.Size)
}

func TestTarRecordsOwner(t *testing.T) {
	t.Parallel()

	e := bufferEntry("owned", "x")
	e.UID, e.GID = 1000, 100
	data := encode(t, FormatTar, e)

	hdr, err := tar.NewReader(bytes.NewReader(data)).Next()
	require.NoError(t, err)
	assert.Equal(t, 1000, hdr.Uid)
	assert.Equal(t, 100, hdr.Gid)
}

func TestZipSkipCompression(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriter(FormatZip, &buf, WriterOptions{
		SkipCompression: []SkipCompressionFunc{DefaultSkipCompression(0)},
	})
	require.NoError(t, err)
	_, err = w.WriteEntry(context.Background(), bufferEntry("image.png", strings.Repeat("x", 1000)))
	require.NoError(t, err)
	_, err = w.WriteEntry(context.Background(), bufferEntry("notes.txt", strings.Repeat("x", 1000)))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, zip.Store, zr.File[0].Method)
	assert.Equal(t, zip.Deflate, zr.File[1].Method)
}

func TestWriteEntryRejectsMissingContent(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{FormatZip, FormatTar} {
		w, err := NewWriter(format, io.Discard, WriterOptions{})
		require.NoError(t, err)
		_, err = w.WriteEntry(context.Background(), &archivetype.Entry{Name: "x", Type: archivetype.TypeBuffer})
		assert.ErrorIs(t, err, archivetype.ErrInvalidInput)
	}
}

func TestWriteEntrySizeChanged(t *testing.T) {
	t.Parallel()

	e := bufferEntry("short", "abc")
	e.Size = 10

	w, err := NewWriter(FormatTar, io.Discard, WriterOptions{})
	require.NoError(t, err)
	_, err = w.WriteEntry(context.Background(), e)
	assert.ErrorIs(t, err, archivetype.ErrIO)
}

func TestNewWriterUnsupported(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(FormatAuto, io.Discard, WriterOptions{})
	require.ErrorIs(t, err, archivetype.ErrUnsupportedFormat)

	_, err = NewReader(FormatZip, bytes.NewReader(nil))
	require.ErrorIs(t, err, archivetype.ErrUnsupportedFormat)

	_, err = OpenRandom(FormatTar, bytes.NewReader(nil), 0)
	require.ErrorIs(t, err, archivetype.ErrUnsupportedFormat)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"", FormatZip},
		{"zip", FormatZip},
		{"ZIP", FormatZip},
		{"tar", FormatTar},
		{"tgz", FormatTarGzip},
		{"tar.gz", FormatTarGzip},
		{"tar.zst", FormatTarZstd},
		{"auto", FormatAuto},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("rar")
	assert.ErrorIs(t, err, archivetype.ErrUnsupportedFormat)
	assert.ErrorIs(t, FormatAuto.Validate(), archivetype.ErrUnsupportedFormat)
}

func TestSniff(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{FormatZip, FormatTar, FormatTarGzip, FormatTarZstd} {
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()

			data := encode(t, format, bufferEntry("file", "hello"))
			got, r, err := Sniff(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, format, got)

			replayed, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, replayed)
		})
	}
}

func TestSniffUnknown(t *testing.T) {
	t.Parallel()

	_, _, err := Sniff(strings.NewReader("just some text"))
	assert.ErrorIs(t, err, archivetype.ErrUnsupportedFormat)
}

func TestSpool(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	s, err := NewSpool(context.Background(), fsys, strings.NewReader("spooled content"))
	require.NoError(t, err)
	assert.Equal(t, int64(15), s.Size())

	p := make([]byte, 7)
	_, err = s.ReadAt(p, 8)
	require.NoError(t, err)
	assert.Equal(t, "content", string(p))

	name := s.file.Name()
	require.NoError(t, s.Close())
	exists, err := afero.Exists(fsys, name)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDefaultSkipCompression(t *testing.T) {
	skip := DefaultSkipCompression(64)
	e := bufferEntry("small.txt", "tiny")
	assert.True(t, skip("small.txt", entryInfo{e: e}))

	big := bufferEntry("big.txt", strings.Repeat("b", 128))
	assert.False(t, skip("big.txt", entryInfo{e: big}))
	assert.True(t, skip("photo.JPG", entryInfo{e: big}))

	stream := streamEntry("unknown.bin", "x")
	assert.False(t, skip("unknown.bin", entryInfo{e: stream}))
}
