// Package ioutil contains small io helpers shared by the codecs and sinks.
package ioutil

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// DigestWriter forwards writes to an underlying writer and records the
// sha256 digest and length of everything that was accepted.
type DigestWriter struct {
	w        io.Writer
	digester digest.Digester
	n        int64
}

// NewDigestWriter returns a DigestWriter over w.
func NewDigestWriter(w io.Writer) *DigestWriter {
	return &DigestWriter{w: w, digester: digest.Canonical.Digester()}
}

// Write implements io.Writer. Only the bytes w accepted are hashed.
func (dw *DigestWriter) Write(p []byte) (int, error) {
	n, err := dw.w.Write(p)
	if n > 0 {
		dw.digester.Hash().Write(p[:n]) //nolint:errcheck // hash writes never fail
		dw.n += int64(n)
	}
	return n, err
}

// Digest returns the digest of the bytes written so far.
func (dw *DigestWriter) Digest() digest.Digest {
	return dw.digester.Digest()
}

// Size returns the number of bytes written so far.
func (dw *DigestWriter) Size() int64 {
	return dw.n
}
