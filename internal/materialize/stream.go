package materialize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/meigma/archiver/internal/archivetype"
)

// Stream starts produce in the background and returns a reader over its
// output. The producer blocks on each write until the reader consumes it.
//
// Producer failures surface from Read wrapped in ErrIO. Closing the reader
// before EOF cancels the producer and waits for it to return, so every
// source handle is released once Close returns. Callers must either read
// to EOF or call Close.
func Stream(ctx context.Context, produce Producer) *Result {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	s := &stream{pr: pr, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		err := produce(ctx, pw)
		if err != nil {
			err = fmt.Errorf("%w: produce archive: %w", archivetype.ErrIO, err)
		}
		pw.CloseWithError(err) //nolint:errcheck // always returns nil
		cancel()
	}()

	return &Result{Stream: s}
}

// stream is the consumer side of a producer pipe. Its context is
// cancelled once the producer returns, whether or not Close is called.
type stream struct {
	pr     *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Read implements io.Reader.
func (s *stream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

// Close stops the producer if it is still running and waits for it.
func (s *stream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.pr.CloseWithError(errStreamClosed)
		<-s.done
	})
	return err
}

// errStreamClosed is what a still-running producer sees on its next write
// after the consumer closed the stream.
var errStreamClosed = errors.New("archive stream closed by consumer")
