// Package codec encodes entry sequences into tar and zip archives and
// decodes them back.
package codec

import (
	"fmt"
	"strings"

	"github.com/meigma/archiver/internal/archivetype"
)

// Format names an archive encoding.
type Format string

const (
	// FormatZip is a zip archive with deflate compression.
	FormatZip Format = "zip"

	// FormatTar is an uncompressed tar archive.
	FormatTar Format = "tar"

	// FormatTarGzip is a gzip-compressed tar archive.
	FormatTarGzip Format = "tar.gz"

	// FormatTarZstd is a zstd-compressed tar archive.
	FormatTarZstd Format = "tar.zst"

	// FormatAuto detects the format from the archive bytes. Only valid for
	// reading.
	FormatAuto Format = "auto"
)

// DefaultFormat is used when no format is requested.
const DefaultFormat = FormatZip

// ParseFormat converts a format token into a Format.
// The empty string yields DefaultFormat.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultFormat, nil
	case "zip":
		return FormatZip, nil
	case "tar":
		return FormatTar, nil
	case "tar.gz", "tgz", "targz":
		return FormatTarGzip, nil
	case "tar.zst", "tzst", "tar.zstd":
		return FormatTarZstd, nil
	case "auto":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("%w: %q", archivetype.ErrUnsupportedFormat, s)
	}
}

// String returns the format token.
func (f Format) String() string {
	return string(f)
}

// IsTar reports whether the format is a tar variant.
func (f Format) IsTar() bool {
	return f == FormatTar || f == FormatTarGzip || f == FormatTarZstd
}

// RandomAccess reports whether reading requires an io.ReaderAt.
func (f Format) RandomAccess() bool {
	return f == FormatZip
}

// Extension returns the conventional file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatZip:
		return ".zip"
	case FormatTar:
		return ".tar"
	case FormatTarGzip:
		return ".tar.gz"
	case FormatTarZstd:
		return ".tar.zst"
	default:
		return ""
	}
}

// Validate checks that f names a concrete format usable for writing.
func (f Format) Validate() error {
	switch f {
	case FormatZip, FormatTar, FormatTarGzip, FormatTarZstd:
		return nil
	default:
		return fmt.Errorf("%w: %q", archivetype.ErrUnsupportedFormat, string(f))
	}
}
