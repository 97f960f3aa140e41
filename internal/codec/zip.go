package codec

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/meigma/archiver/internal/archivetype"
	"github.com/meigma/archiver/internal/ioutil"
)

// zipWriter writes entries with deflate, storing entries that match a skip
// predicate. Streams of unknown size are written with data descriptors, so
// no spooling is needed.
type zipWriter struct {
	zw   *zip.Writer
	opts WriterOptions
	buf  []byte
}

func newZipWriter(w io.Writer, opts WriterOptions) *zipWriter {
	zw := zip.NewWriter(w)
	if opts.Level != 0 {
		level := opts.Level
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
	}
	return &zipWriter{zw: zw, opts: opts, buf: make([]byte, ioutil.DefaultBufferSize)}
}

// WriteEntry implements Writer.
func (w *zipWriter) WriteEntry(ctx context.Context, e *archivetype.Entry) (uint64, error) {
	hdr := &zip.FileHeader{
		Name:     e.Name,
		Modified: entryTime(e),
		Method:   zip.Deflate,
	}

	if e.Type.IsDir() {
		hdr.Name = strings.TrimSuffix(e.Name, "/") + "/"
		hdr.Method = zip.Store
		hdr.SetMode(entryMode(e) | fs.ModeDir)
		if _, err := w.zw.CreateHeader(hdr); err != nil {
			return 0, fmt.Errorf("%w: write header %s: %w", archivetype.ErrIO, e.Name, err)
		}
		return 0, nil
	}

	if e.Open == nil {
		return 0, fmt.Errorf("%w: entry %s has no content", archivetype.ErrInvalidInput, e.Name)
	}
	hdr.SetMode(entryMode(e))
	if ShouldSkip(e.Name, entryInfo{e: e}, w.opts.SkipCompression) {
		hdr.Method = zip.Store
	}

	rc, err := e.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	dst, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return 0, fmt.Errorf("%w: write header %s: %w", archivetype.ErrIO, e.Name, err)
	}
	n, err := ioutil.CopyWithContext(ctx, dst, rc, w.buf)
	if err != nil {
		return uint64(n), fmt.Errorf("%w: write %s: %w", archivetype.ErrIO, e.Name, err) //nolint:gosec // n is non-negative
	}
	if e.SizeKnown() && n != e.Size {
		return uint64(n), fmt.Errorf("%w: %s changed size during archiving: expected %d, got %d", archivetype.ErrIO, e.Name, e.Size, n) //nolint:gosec // n is non-negative
	}
	return uint64(n), nil //nolint:gosec // n is non-negative
}

// Close implements Writer.
func (w *zipWriter) Close() error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("%w: finish zip: %w", archivetype.ErrIO, err)
	}
	return nil
}

func openZip(ra io.ReaderAt, size int64) ([]File, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: open zip: %w", archivetype.ErrIO, err)
	}

	files := make([]File, 0, len(zr.File))
	for _, f := range zr.File {
		mode := f.Mode()
		dir := mode.IsDir() || strings.HasSuffix(f.Name, "/")
		if !dir && !mode.IsRegular() {
			continue
		}
		hdr := archivetype.Header{
			Name:    f.Name,
			Dir:     dir,
			Mode:    mode.Perm(),
			ModTime: f.Modified,
		}
		if !dir {
			hdr.Size = int64(f.UncompressedSize64) //nolint:gosec // sizes above int64 are rejected by the extractor limits
		}
		files = append(files, File{Header: hdr, Open: f.Open})
	}
	return files, nil
}
