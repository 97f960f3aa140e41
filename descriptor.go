package archiver

import "github.com/meigma/archiver/internal/archivetype"

// EntryType identifies how a descriptor's data is interpreted.
type EntryType = archivetype.Type

// Entry types.
const (
	// TypeInfer lets the type follow from the data: a string is a path, a
	// []byte a buffer and an io.Reader a stream.
	TypeInfer = archivetype.TypeUnknown

	// TypeFile is a regular file at the path held in Data.
	TypeFile = archivetype.TypeFile

	// TypeDirectory is a directory at the path held in Data. It expands to
	// the directory and all of its descendants.
	TypeDirectory = archivetype.TypeDirectory

	// TypeStream is content read once from the io.Reader held in Data.
	TypeStream = archivetype.TypeStream

	// TypeBuffer is content held in the []byte in Data.
	TypeBuffer = archivetype.TypeBuffer

	// TypeString is text content held in the string in Data.
	TypeString = archivetype.TypeString
)

// ParseEntryType converts a type token ("file", "directory", "stream",
// "buffer" or "string") into an EntryType. The empty string yields
// TypeInfer.
func ParseEntryType(s string) (EntryType, error) {
	return archivetype.ParseType(s)
}

// Descriptor explicitly names and types one input.
//
// Name and Type take precedence over inference. An empty Name falls back
// to the base name for paths and to a positional name for content. For
// directories Name replaces the directory's own name and prefixes every
// descendant.
type Descriptor struct {
	Name string
	Type EntryType
	Data any
}
