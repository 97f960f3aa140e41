package archiver

import (
	"io"
)

type sourceKind uint8

const (
	sourceNone sourceKind = iota
	sourcePath
	sourceBytes
	sourceReader
)

// Source is an archive to extract.
type Source struct {
	kind sourceKind
	path string
	data []byte
	r    io.Reader
}

// SourcePath reads the archive from a file.
func SourcePath(path string) Source {
	return Source{kind: sourcePath, path: path}
}

// SourceBytes reads the archive from memory.
func SourceBytes(b []byte) Source {
	return Source{kind: sourceBytes, data: b}
}

// SourceReader reads the archive from r in a single pass. Zip archives are
// spooled to a temporary file first because they need random access. r is
// closed after extraction if it is an io.Closer.
func SourceReader(r io.Reader) Source {
	return Source{kind: sourceReader, r: r}
}

// release closes an owned reader.
func (s Source) release() error {
	if c, ok := s.r.(io.Closer); ok && s.kind == sourceReader {
		return c.Close()
	}
	return nil
}
