package archiver

import "github.com/meigma/archiver/internal/archivetype"

// Errors returned by Archive and Extract. Match them with errors.Is; the
// underlying cause stays wrapped alongside.
var (
	// ErrNotFound is returned when an input path does not exist.
	ErrNotFound = archivetype.ErrNotFound

	// ErrInvalidInput is returned for malformed inputs, descriptors, options
	// and archives that exceed extraction limits.
	ErrInvalidInput = archivetype.ErrInvalidInput

	// ErrUnsupportedFormat is returned for unknown format tokens and for
	// sources whose format cannot be detected.
	ErrUnsupportedFormat = archivetype.ErrUnsupportedFormat

	// ErrWrite is returned when an output file or extraction destination
	// cannot be written, including when its directory does not exist.
	ErrWrite = archivetype.ErrWrite

	// ErrIO is returned for failures while moving archive bytes.
	ErrIO = archivetype.ErrIO

	// ErrPathTraversal is returned when an archive entry would be written
	// outside the extraction destination.
	ErrPathTraversal = archivetype.ErrPathTraversal

	// ErrDigestMismatch is returned when a source does not match the digest
	// given with ExtractWithDigest.
	ErrDigestMismatch = archivetype.ErrDigestMismatch
)
