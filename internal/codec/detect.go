package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"github.com/meigma/archiver/internal/archivetype"
)

// sniffLen matches the default read limit of mimetype.
const sniffLen = 3072

// Detect identifies the archive format from the leading bytes of an archive.
func Detect(head []byte) (Format, error) {
	for m := mimetype.Detect(head); m != nil; m = m.Parent() {
		switch {
		case m.Is("application/zip"):
			return FormatZip, nil
		case m.Is("application/x-tar"):
			return FormatTar, nil
		case m.Is("application/gzip"):
			return FormatTarGzip, nil
		case m.Is("application/zstd"):
			return FormatTarZstd, nil
		}
	}
	return "", fmt.Errorf("%w: unrecognized archive content", archivetype.ErrUnsupportedFormat)
}

// Sniff reads the head of r, detects its format and returns a reader that
// replays the consumed bytes followed by the rest of r.
func Sniff(r io.Reader) (Format, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("%w: read archive head: %w", archivetype.ErrIO, err)
	}
	head = head[:n]

	format, err := Detect(head)
	if err != nil {
		return "", nil, err
	}
	return format, io.MultiReader(bytes.NewReader(head), r), nil
}
