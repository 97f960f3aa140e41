package ioutil

import (
	"context"
	"io"
)

// DefaultBufferSize is the copy buffer size used when callers pass nil.
const DefaultBufferSize = 32 * 1024

// CopyWithContext copies src to dst like io.CopyBuffer, checking ctx
// between chunks so long copies can be cancelled.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultBufferSize)
	}

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if werr == nil {
					werr = io.ErrShortWrite
				}
			}
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// LimitError is returned by LimitedReader when more than N bytes are available.
type LimitError struct {
	Limit uint64
}

func (e *LimitError) Error() string {
	return "content exceeds limit"
}

// LimitedReader reads from R and fails with *LimitError once more than
// Limit bytes have been read in total. Limit zero disables the check.
type LimitedReader struct {
	R     io.Reader
	Limit uint64
	N     uint64
}

// Read implements io.Reader.
func (l *LimitedReader) Read(p []byte) (int, error) {
	n, err := l.R.Read(p)
	if n > 0 {
		l.N += uint64(n) //nolint:gosec // n is non-negative per io.Reader contract
		if l.Limit > 0 && l.N > l.Limit {
			return n, &LimitError{Limit: l.Limit}
		}
	}
	return n, err
}
