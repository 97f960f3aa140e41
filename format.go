package archiver

import (
	"github.com/meigma/archiver/internal/codec"
)

// Format names an archive encoding.
type Format = codec.Format

// Supported formats.
const (
	// FormatZip is a zip archive. It is the default.
	FormatZip = codec.FormatZip

	// FormatTar is an uncompressed tar archive.
	FormatTar = codec.FormatTar

	// FormatTarGzip is a gzip-compressed tar archive.
	FormatTarGzip = codec.FormatTarGzip

	// FormatTarZstd is a zstd-compressed tar archive.
	FormatTarZstd = codec.FormatTarZstd

	// FormatAuto detects the format of an extraction source from its
	// leading bytes. It cannot be used to create archives.
	FormatAuto = codec.FormatAuto
)

// DefaultFormat is used when no format is requested.
const DefaultFormat = codec.DefaultFormat

// ParseFormat converts a format token such as "zip", "tar" or "tgz" into a
// Format. The empty string yields DefaultFormat; unknown tokens fail with
// ErrUnsupportedFormat.
func ParseFormat(s string) (Format, error) {
	return codec.ParseFormat(s)
}

// DetectFormat identifies the archive format from its leading bytes.
// Passing at least the first 3 KiB gives the most reliable result.
func DetectFormat(head []byte) (Format, error) {
	return codec.Detect(head)
}

// SkipCompressionFunc returns true when a zip entry should be stored
// uncompressed. name is the entry name and info describes it; Size is -1
// for streams.
type SkipCompressionFunc = codec.SkipCompressionFunc

// DefaultSkipCompression returns a predicate that skips entries smaller
// than minSize and entries with already-compressed extensions.
func DefaultSkipCompression(minSize int64) SkipCompressionFunc {
	return codec.DefaultSkipCompression(minSize)
}
