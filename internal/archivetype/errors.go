package archivetype

import "errors"

// Sentinel errors. Operations wrap them together with the underlying cause,
// so callers match with errors.Is.
var (
	// ErrNotFound is returned when a source path does not exist.
	ErrNotFound = errors.New("archiver: not found")

	// ErrInvalidInput is returned for malformed inputs and descriptors.
	ErrInvalidInput = errors.New("archiver: invalid input")

	// ErrUnsupportedFormat is returned for unknown or undetectable formats.
	ErrUnsupportedFormat = errors.New("archiver: unsupported format")

	// ErrWrite is returned when a destination cannot be written.
	ErrWrite = errors.New("archiver: write failed")

	// ErrIO is returned for transport failures while streaming bytes.
	ErrIO = errors.New("archiver: i/o failure")

	// ErrPathTraversal is returned when an entry would land outside the
	// extraction root.
	ErrPathTraversal = errors.New("archiver: path escapes destination")

	// ErrDigestMismatch is returned when archive bytes do not match the
	// expected digest.
	ErrDigestMismatch = errors.New("archiver: digest mismatch")
)
