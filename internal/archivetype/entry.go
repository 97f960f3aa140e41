// Package archivetype holds the types shared by the normalizer, the codecs
// and the extractor.
package archivetype

import (
	"fmt"
	"io"
	"io/fs"
	"time"
)

// Type identifies how an entry's content is provided.
type Type uint8

const (
	// TypeUnknown is the zero value; normalizers infer a concrete type.
	TypeUnknown Type = iota

	// TypeFile is content read from a file on the filesystem.
	TypeFile

	// TypeDirectory is a directory. Directories carry no content.
	TypeDirectory

	// TypeStream is content read once from a caller-supplied reader.
	TypeStream

	// TypeBuffer is content held in a byte slice.
	TypeBuffer

	// TypeString is text content.
	TypeString
)

// String returns the descriptor token for the type.
func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeStream:
		return "stream"
	case TypeBuffer:
		return "buffer"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// IsDir reports whether entries of this type are directories.
func (t Type) IsDir() bool {
	return t == TypeDirectory
}

// ParseType converts a descriptor token into a Type.
// The empty string yields TypeUnknown so the caller can infer the type.
func ParseType(s string) (Type, error) {
	switch s {
	case "":
		return TypeUnknown, nil
	case "file":
		return TypeFile, nil
	case "directory", "dir":
		return TypeDirectory, nil
	case "stream":
		return TypeStream, nil
	case "buffer":
		return TypeBuffer, nil
	case "string":
		return TypeString, nil
	default:
		return TypeUnknown, fmt.Errorf("%w: unknown entry type %q", ErrInvalidInput, s)
	}
}

// OpenFunc returns a fresh reader for an entry's content.
// The caller closes the returned reader.
type OpenFunc func() (io.ReadCloser, error)

// Entry is one named unit of an archive.
type Entry struct {
	// Name is the slash-separated path inside the archive.
	Name string

	// Type records how the content was supplied.
	Type Type

	// Mode holds permission bits.
	Mode fs.FileMode

	// ModTime is the modification time written into the archive header.
	ModTime time.Time

	// Size is the content length in bytes, or -1 when unknown until read.
	Size int64

	// UID and GID are the numeric owner of filesystem entries. Tar records
	// them; zip has no field for them.
	UID, GID int

	// Open resolves the content lazily. Nil for directories.
	Open OpenFunc
}

// SizeKnown reports whether the content length is available without reading.
func (e *Entry) SizeKnown() bool {
	return e.Size >= 0
}

// Header describes an entry decoded from an archive.
type Header struct {
	// Name is the slash-separated path as stored in the archive.
	Name string

	// Dir is true for directory entries.
	Dir bool

	// Mode holds permission bits.
	Mode fs.FileMode

	// ModTime is the stored modification time.
	ModTime time.Time

	// Size is the uncompressed content length, or -1 when unknown.
	Size int64
}
