package codec

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/archiver/internal/archivetype"
	"github.com/meigma/archiver/internal/ioutil"
)

// tarWriter writes entries through archive/tar, optionally wrapped in a
// gzip or zstd compressor.
type tarWriter struct {
	tw   *tar.Writer
	comp io.WriteCloser
	opts WriterOptions
	buf  []byte
}

func newTarWriter(format Format, w io.Writer, opts WriterOptions) (*tarWriter, error) {
	tw := &tarWriter{opts: opts, buf: make([]byte, ioutil.DefaultBufferSize)}

	switch format {
	case FormatTar:
		tw.tw = tar.NewWriter(w)
	case FormatTarGzip:
		level := opts.Level
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gz, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("create gzip writer: %w", err)
		}
		tw.comp = gz
		tw.tw = tar.NewWriter(gz)
	case FormatTarZstd:
		zopts := []zstd.EOption{zstd.WithEncoderConcurrency(1)}
		if opts.Level != 0 {
			zopts = append(zopts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)))
		}
		enc, err := zstd.NewWriter(w, zopts...)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		tw.comp = enc
		tw.tw = tar.NewWriter(enc)
	default:
		return nil, fmt.Errorf("%w: %q", archivetype.ErrUnsupportedFormat, string(format))
	}
	return tw, nil
}

// WriteEntry implements Writer.
func (w *tarWriter) WriteEntry(ctx context.Context, e *archivetype.Entry) (uint64, error) {
	hdr := &tar.Header{
		Name:    e.Name,
		Mode:    int64(entryMode(e)),
		ModTime: entryTime(e),
		Uid:     e.UID,
		Gid:     e.GID,
		Format:  tar.FormatPAX,
	}

	if e.Type.IsDir() {
		hdr.Typeflag = tar.TypeDir
		hdr.Name = strings.TrimSuffix(e.Name, "/") + "/"
		if err := w.tw.WriteHeader(hdr); err != nil {
			return 0, fmt.Errorf("%w: write header %s: %w", archivetype.ErrIO, e.Name, err)
		}
		return 0, nil
	}

	if e.Open == nil {
		return 0, fmt.Errorf("%w: entry %s has no content", archivetype.ErrInvalidInput, e.Name)
	}
	rc, err := e.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	var src io.Reader = rc
	size := e.Size
	if !e.SizeKnown() {
		spool, err := NewSpool(ctx, w.opts.fs(), rc)
		if err != nil {
			return 0, fmt.Errorf("spool %s: %w", e.Name, err)
		}
		defer spool.Close()
		src, size = spool, spool.Size()
	}

	hdr.Typeflag = tar.TypeReg
	hdr.Size = size
	if err := w.tw.WriteHeader(hdr); err != nil {
		return 0, fmt.Errorf("%w: write header %s: %w", archivetype.ErrIO, e.Name, err)
	}

	n, err := ioutil.CopyWithContext(ctx, w.tw, io.LimitReader(src, size), w.buf)
	if err != nil {
		return uint64(n), fmt.Errorf("%w: write %s: %w", archivetype.ErrIO, e.Name, err) //nolint:gosec // n is non-negative
	}
	if n != size {
		return uint64(n), fmt.Errorf("%w: %s changed size during archiving: expected %d, got %d", archivetype.ErrIO, e.Name, size, n) //nolint:gosec // n is non-negative
	}
	return uint64(n), nil //nolint:gosec // n is non-negative
}

// Close implements Writer.
func (w *tarWriter) Close() error {
	err := w.tw.Close()
	if w.comp != nil {
		err = errors.Join(err, w.comp.Close())
	}
	if err != nil {
		return fmt.Errorf("%w: finish tar: %w", archivetype.ErrIO, err)
	}
	return nil
}

// tarReader decodes a tar stream, skipping links and special files.
type tarReader struct {
	tr     *tar.Reader
	closer func()
}

func newTarReader(format Format, r io.Reader) (*tarReader, error) {
	switch format {
	case FormatTar:
		return &tarReader{tr: tar.NewReader(r)}, nil
	case FormatTarGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: open gzip stream: %w", archivetype.ErrIO, err)
		}
		return &tarReader{tr: tar.NewReader(gz), closer: func() { _ = gz.Close() }}, nil //nolint:errcheck // reader close
	case FormatTarZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("%w: open zstd stream: %w", archivetype.ErrIO, err)
		}
		return &tarReader{tr: tar.NewReader(dec), closer: dec.Close}, nil
	default:
		return nil, fmt.Errorf("%w: %q", archivetype.ErrUnsupportedFormat, string(format))
	}
}

// Next implements Reader.
func (r *tarReader) Next() (archivetype.Header, io.Reader, error) {
	for {
		hdr, err := r.tr.Next()
		if errors.Is(err, io.EOF) {
			return archivetype.Header{}, nil, io.EOF
		}
		if err != nil {
			return archivetype.Header{}, nil, fmt.Errorf("%w: read tar header: %w", archivetype.ErrIO, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			return archivetype.Header{
				Name:    hdr.Name,
				Dir:     true,
				Mode:    hdr.FileInfo().Mode().Perm(),
				ModTime: hdr.ModTime,
				Size:    0,
			}, nil, nil
		case tar.TypeReg:
			return archivetype.Header{
				Name:    hdr.Name,
				Mode:    hdr.FileInfo().Mode().Perm(),
				ModTime: hdr.ModTime,
				Size:    hdr.Size,
			}, r.tr, nil
		default:
			continue
		}
	}
}

// Close implements Reader.
func (r *tarReader) Close() error {
	if r.closer != nil {
		r.closer()
	}
	return nil
}
