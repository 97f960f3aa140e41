package codec

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/afero"

	"github.com/meigma/archiver/internal/archivetype"
)

// Writer encodes entries into an archive.
type Writer interface {
	// WriteEntry appends e to the archive, reading its content through
	// e.Open. It returns the number of content bytes written.
	WriteEntry(ctx context.Context, e *archivetype.Entry) (uint64, error)

	// Close flushes trailing archive structures. It does not close the
	// underlying io.Writer.
	Close() error
}

// Reader decodes an archive sequentially.
type Reader interface {
	// Next advances to the next entry and returns its header and content.
	// The content reader is valid until the following Next call.
	// Next returns io.EOF once the archive is exhausted.
	Next() (archivetype.Header, io.Reader, error)

	// Close releases decoder resources. It does not close the source.
	Close() error
}

// File is an entry of a random-access archive.
type File struct {
	Header archivetype.Header
	Open   func() (io.ReadCloser, error)
}

// WriterOptions configures archive encoding.
type WriterOptions struct {
	// FS provides scratch space for spooling streams of unknown size.
	// Nil uses the OS filesystem.
	FS afero.Fs

	// SkipCompression lists predicates that store zip entries uncompressed.
	SkipCompression []SkipCompressionFunc

	// Level is the compression level passed to the compressor.
	// Zero selects the compressor default.
	Level int
}

func (o *WriterOptions) fs() afero.Fs {
	if o.FS == nil {
		return afero.NewOsFs()
	}
	return o.FS
}

// NewWriter returns a Writer encoding format to w.
func NewWriter(format Format, w io.Writer, opts WriterOptions) (Writer, error) {
	switch {
	case format == FormatZip:
		return newZipWriter(w, opts), nil
	case format.IsTar():
		return newTarWriter(format, w, opts)
	default:
		return nil, fmt.Errorf("%w: cannot write %q", archivetype.ErrUnsupportedFormat, string(format))
	}
}

// NewReader returns a sequential Reader for a tar variant.
func NewReader(format Format, r io.Reader) (Reader, error) {
	if !format.IsTar() {
		return nil, fmt.Errorf("%w: %q is not a streaming format", archivetype.ErrUnsupportedFormat, string(format))
	}
	return newTarReader(format, r)
}

// OpenRandom lists the entries of a random-access archive.
func OpenRandom(format Format, ra io.ReaderAt, size int64) ([]File, error) {
	if format != FormatZip {
		return nil, fmt.Errorf("%w: %q is not a random-access format", archivetype.ErrUnsupportedFormat, string(format))
	}
	return openZip(ra, size)
}

// entryInfo adapts an Entry to fs.FileInfo for compression predicates.
type entryInfo struct {
	e *archivetype.Entry
}

func (i entryInfo) Name() string       { return i.e.Name }
func (i entryInfo) Size() int64        { return i.e.Size }
func (i entryInfo) ModTime() time.Time { return i.e.ModTime }
func (i entryInfo) IsDir() bool        { return i.e.Type.IsDir() }
func (i entryInfo) Sys() any           { return nil }

func (i entryInfo) Mode() fs.FileMode {
	if i.e.Type.IsDir() {
		return i.e.Mode | fs.ModeDir
	}
	return i.e.Mode
}

// entryMode returns the permission bits recorded for e, with defaults for
// entries that did not carry any.
func entryMode(e *archivetype.Entry) fs.FileMode {
	perm := e.Mode.Perm()
	if perm != 0 {
		return perm
	}
	if e.Type.IsDir() {
		return 0o755
	}
	return 0o644
}

func entryTime(e *archivetype.Entry) time.Time {
	if e.ModTime.IsZero() {
		return time.Now()
	}
	return e.ModTime
}
