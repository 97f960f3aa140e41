package materialize

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/archiver/internal/archivetype"
)

func writeString(s string) Producer {
	return func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

var errProduce = errors.New("producer failed")

func failAfter(s string) Producer {
	return func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
		return errProduce
	}
}

func TestBuffer(t *testing.T) {
	t.Parallel()

	res, err := Buffer(context.Background(), writeString("archive bytes"))
	require.NoError(t, err)
	assert.Equal(t, []byte("archive bytes"), res.Bytes)
	assert.Equal(t, digest.FromString("archive bytes"), res.Digest)
	assert.Equal(t, int64(13), res.Size)
	assert.Nil(t, res.Stream)
	assert.Empty(t, res.Path)
}

func TestBufferError(t *testing.T) {
	t.Parallel()

	_, err := Buffer(context.Background(), failAfter("partial"))
	assert.ErrorIs(t, err, errProduce)
}

func TestStreamReadsAll(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("0123456789", 10000)
	res := Stream(context.Background(), writeString(payload))
	require.NotNil(t, res.Stream)

	got, err := io.ReadAll(res.Stream)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
	require.NoError(t, res.Stream.Close())
}

func TestStreamProducerError(t *testing.T) {
	t.Parallel()

	res := Stream(context.Background(), failAfter("partial"))
	got, err := io.ReadAll(res.Stream)
	assert.Equal(t, "partial", string(got))
	require.ErrorIs(t, err, archivetype.ErrIO)
	require.ErrorIs(t, err, errProduce)
	require.NoError(t, res.Stream.Close())
}

func TestStreamBackpressure(t *testing.T) {
	t.Parallel()

	chunk := bytes.Repeat([]byte("x"), 64)
	var written atomic.Int32
	res := Stream(context.Background(), func(_ context.Context, w io.Writer) error {
		for range 3 {
			if _, err := w.Write(chunk); err != nil {
				return err
			}
			written.Add(1)
		}
		return nil
	})

	p := make([]byte, len(chunk))
	_, err := io.ReadFull(res.Stream, p)
	require.NoError(t, err)
	assert.LessOrEqual(t, written.Load(), int32(1))

	require.NoError(t, res.Stream.Close())
	assert.LessOrEqual(t, written.Load(), int32(1))
}

func TestStreamCloseReleasesProducer(t *testing.T) {
	t.Parallel()

	var released atomic.Bool
	var sawCancel atomic.Bool
	res := Stream(context.Background(), func(ctx context.Context, w io.Writer) error {
		defer released.Store(true)
		for {
			if _, err := w.Write([]byte("data")); err != nil {
				sawCancel.Store(ctx.Err() != nil)
				return err
			}
		}
	})

	p := make([]byte, 4)
	_, err := io.ReadFull(res.Stream, p)
	require.NoError(t, err)

	require.NoError(t, res.Stream.Close())
	assert.True(t, released.Load())
	assert.True(t, sawCancel.Load())

	require.NoError(t, res.Stream.Close())
	_, err = res.Stream.Read(p)
	assert.Error(t, err)
}

func TestStreamCancelsContextAtEOF(t *testing.T) {
	t.Parallel()

	ctxs := make(chan context.Context, 1)
	res := Stream(context.Background(), func(ctx context.Context, w io.Writer) error {
		ctxs <- ctx
		_, err := io.WriteString(w, "done")
		return err
	})

	got, err := io.ReadAll(res.Stream)
	require.NoError(t, err)
	assert.Equal(t, "done", string(got))

	ctx := <-ctxs
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("producer context still live after EOF")
	}
}

func TestFile(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out", 0o755))

	res, err := File(context.Background(), fsys, "/out/archive.zip", writeString("archive bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/out/archive.zip", res.Path)
	assert.Equal(t, digest.FromString("archive bytes"), res.Digest)
	assert.Equal(t, int64(13), res.Size)

	got, err := afero.ReadFile(fsys, "/out/archive.zip")
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(got))

	entries, err := afero.ReadDir(fsys, "/out")
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")
}

func TestFileOverwritesExisting(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/out/archive.tar", []byte("old content that is longer"), 0o644))

	_, err := File(context.Background(), fsys, "/out/archive.tar", writeString("new"))
	require.NoError(t, err)

	got, err := afero.ReadFile(fsys, "/out/archive.tar")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestFileMissingParent(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	_, err := File(context.Background(), fsys, "/missing/dir/archive.zip", writeString("x"))
	require.ErrorIs(t, err, archivetype.ErrWrite)

	exists, err := afero.Exists(fsys, "/missing/dir/archive.zip")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileProducerFailureLeavesNothing(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out", 0o755))

	_, err := File(context.Background(), fsys, "/out/archive.zip", failAfter("partial"))
	require.ErrorIs(t, err, errProduce)

	entries, err := afero.ReadDir(fsys, "/out")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileUnwritable(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/out", 0o755))
	fsys := afero.NewReadOnlyFs(base)

	_, err := File(context.Background(), fsys, "/out/archive.zip", writeString("x"))
	assert.ErrorIs(t, err, archivetype.ErrWrite)
}

func TestFileTargetIsDirectory(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out/archive.zip", 0o755))

	_, err := File(context.Background(), fsys, "/out/archive.zip", writeString("x"))
	assert.ErrorIs(t, err, archivetype.ErrWrite)
}
