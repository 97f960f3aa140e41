package archiver

import (
	"bytes"
	"io"

	"github.com/opencontainers/go-digest"
)

type outputKind uint8

const (
	outputBuffer outputKind = iota
	outputStream
	outputFile
)

// Output selects how Archive returns the archive. The zero value is
// OutputBuffer.
type Output struct {
	kind outputKind
	path string
}

var (
	// OutputBuffer returns the archive as a byte slice in Result.Bytes.
	OutputBuffer = Output{kind: outputBuffer}

	// OutputStream returns the archive as a lazy reader in Result.Stream.
	// Archive bytes are produced as the reader is consumed.
	OutputStream = Output{kind: outputStream}
)

// OutputFile writes the archive to path. The parent directory must exist.
// The file appears at path only once it is complete.
func OutputFile(path string) Output {
	return Output{kind: outputFile, path: path}
}

// ParseOutput converts an output token: "buffer" or "" for OutputBuffer,
// "stream" for OutputStream, anything else is a file path.
func ParseOutput(s string) Output {
	switch s {
	case "", "buffer":
		return OutputBuffer
	case "stream":
		return OutputStream
	default:
		return OutputFile(s)
	}
}

// IsBuffer reports whether o is buffer output.
func (o Output) IsBuffer() bool { return o.kind == outputBuffer }

// IsStream reports whether o is stream output.
func (o Output) IsStream() bool { return o.kind == outputStream }

// IsFile reports whether o is file output.
func (o Output) IsFile() bool { return o.kind == outputFile }

// Path returns the file path of file output.
func (o Output) Path() string { return o.path }

// String returns the output token.
func (o Output) String() string {
	switch o.kind {
	case outputStream:
		return "stream"
	case outputFile:
		return o.path
	default:
		return "buffer"
	}
}

// Result describes a created archive. Exactly one of Bytes, Stream and Path
// is set, matching Output.
type Result struct {
	// Output is the output the archive was materialized to.
	Output Output

	// Format is the archive format.
	Format Format

	// Bytes holds the archive for buffer output.
	Bytes []byte

	// Stream yields the archive for stream output. The caller must read
	// it to EOF or Close it; Close stops archiving and releases inputs.
	Stream io.ReadCloser

	// Path is the written archive for file output.
	Path string

	// Digest is the sha256 digest of the archive. Empty for stream output.
	Digest digest.Digest

	// Size is the archive size in bytes. Zero for stream output.
	Size int64

	// Entries is the number of entries in the archive.
	Entries int
}

// Source returns an extraction source reading this archive. For stream
// output the stream is handed over and consumed by the extraction.
func (r *Result) Source() Source {
	switch {
	case r.Output.IsStream():
		return SourceReader(r.Stream)
	case r.Output.IsFile():
		return SourcePath(r.Path)
	default:
		return SourceBytes(r.Bytes)
	}
}

// Reader returns a reader over the archive for buffer and stream output.
// It returns nil for file output.
func (r *Result) Reader() io.Reader {
	switch {
	case r.Output.IsStream():
		return r.Stream
	case r.Output.IsFile():
		return nil
	default:
		return bytes.NewReader(r.Bytes)
	}
}
