package codec

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/meigma/archiver/internal/archivetype"
	"github.com/meigma/archiver/internal/ioutil"
)

// Spool is a temporary copy of a stream on a filesystem, used where a
// format needs the content size up front or random access.
type Spool struct {
	fs   afero.Fs
	file afero.File
	size int64
}

// NewSpool copies r into a temporary file on fsys.
// The caller must Close the spool to remove the file.
func NewSpool(ctx context.Context, fsys afero.Fs, r io.Reader) (*Spool, error) {
	f, err := afero.TempFile(fsys, "", "archiver-spool-")
	if err != nil {
		return nil, fmt.Errorf("%w: create spool file: %w", archivetype.ErrIO, err)
	}
	s := &Spool{fs: fsys, file: f}

	n, err := ioutil.CopyWithContext(ctx, f, r, nil)
	if err != nil {
		_ = s.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("%w: spool content: %w", archivetype.ErrIO, err)
	}
	s.size = n

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = s.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("%w: rewind spool: %w", archivetype.ErrIO, err)
	}
	return s, nil
}

// Size returns the number of spooled bytes.
func (s *Spool) Size() int64 {
	return s.size
}

// Read implements io.Reader from the current offset.
func (s *Spool) Read(p []byte) (int, error) {
	return s.file.Read(p)
}

// ReadAt implements io.ReaderAt.
func (s *Spool) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// Close closes and removes the spool file.
func (s *Spool) Close() error {
	name := s.file.Name()
	closeErr := s.file.Close()
	if err := s.fs.Remove(name); err != nil {
		return err
	}
	return closeErr
}
