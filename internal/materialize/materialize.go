// Package materialize turns an archive producer into one of the supported
// output shapes: an in-memory buffer, a lazy stream or a file.
package materialize

import (
	"context"
	"io"

	"github.com/opencontainers/go-digest"
)

// Producer writes a complete archive to w. It is called exactly once per
// materialization and must release every source handle before returning.
type Producer func(ctx context.Context, w io.Writer) error

// Result holds the materialized archive. Exactly one of Bytes, Stream or
// Path is set.
type Result struct {
	// Bytes is the archive for buffer output.
	Bytes []byte

	// Stream is the single-pass archive reader for stream output.
	Stream io.ReadCloser

	// Path is the written file for file output.
	Path string

	// Digest is the sha256 digest of the archive. It is empty for stream
	// output because the bytes have not been produced yet.
	Digest digest.Digest

	// Size is the archive size in bytes. It is zero for stream output.
	Size int64
}
