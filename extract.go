package archiver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/archiver/internal/codec"
	"github.com/meigma/archiver/internal/extract"
	"github.com/meigma/archiver/internal/ioutil"
)

// sniffLen is how much of a file source is read to detect its format.
const sniffLen = 3072

// Extract writes the archive read from src beneath dest.
//
// dest must be an existing directory; it is never created, and a missing
// destination fails with [ErrWrite]. Directory entries are created with
// their ancestors and re-extracting over an existing tree is allowed. Zip
// archives create directories parent-first before writing files in
// parallel; tar archives are applied in stream order with missing parents
// created on demand.
//
// Entries whose names are absolute or contain ".." fail with
// [ErrPathTraversal]. A failed extraction leaves already written files in
// place.
func Extract(ctx context.Context, src Source, dest string, opts ...ExtractOption) error {
	cfg := newExtractConfig(opts)
	defer func() {
		if err := src.release(); err != nil {
			cfg.logger.Debug("closing source", "error", err)
		}
	}()

	if cfg.err != nil {
		return cfg.err
	}
	if src.kind == sourceNone || (src.kind == sourceReader && src.r == nil) {
		return fmt.Errorf("%w: empty source", ErrInvalidInput)
	}
	if cfg.format != FormatAuto {
		if err := cfg.format.Validate(); err != nil {
			return err
		}
	}
	if cfg.digest != "" {
		if err := cfg.digest.Validate(); err != nil {
			return fmt.Errorf("%w: digest %q: %w", ErrInvalidInput, cfg.digest, err)
		}
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	x, err := extract.New(dest, extract.Options{
		FS:            cfg.fs,
		Overwrite:     cfg.overwrite,
		PreserveMode:  cfg.preserveMode,
		PreserveTimes: cfg.preserveTimes,
		Workers:       cfg.workers,
		MaxEntries:    cfg.maxEntries,
		MaxBytes:      cfg.maxBytes,
		Progress:      cfg.progress,
		Logger:        cfg.logger,
	})
	if err != nil {
		return err
	}

	log := cfg.logger.With("destination", dest)
	log.Info("extract started", "format", cfg.format.String())

	run := &extractRun{cfg: cfg, x: x}
	switch src.kind {
	case sourceBytes:
		err = run.fromBytes(ctx, src.data)
	case sourcePath:
		err = run.fromPath(ctx, src.path)
	default:
		err = run.fromReader(ctx, src.r)
	}
	if err != nil {
		return err
	}

	entries, written := x.Stats()
	log.Info("extract complete", "entries", entries, "bytes", written)
	return nil
}

// extractRun extracts one source.
type extractRun struct {
	cfg *extractConfig
	x   *extract.Extractor
}

func (r *extractRun) fromBytes(ctx context.Context, data []byte) error {
	if r.cfg.digest != "" {
		if got := r.cfg.digest.Algorithm().FromBytes(data); got != r.cfg.digest {
			return digestMismatch(r.cfg.digest, got)
		}
	}

	format := r.cfg.format
	if format == FormatAuto {
		var err error
		if format, err = codec.Detect(data[:min(len(data), sniffLen)]); err != nil {
			return err
		}
	}
	return r.extract(ctx, format, bytes.NewReader(data), int64(len(data)))
}

func (r *extractRun) fromPath(ctx context.Context, path string) error {
	f, err := r.cfg.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
		}
		return fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: source %s is a directory", ErrInvalidInput, path)
	}

	if r.cfg.digest != "" {
		verifier := r.cfg.digest.Verifier()
		if _, err := ioutil.CopyWithContext(ctx, verifier, f, nil); err != nil {
			return fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
		}
		if !verifier.Verified() {
			return fmt.Errorf("%w: %s does not match %s", ErrDigestMismatch, path, r.cfg.digest)
		}
	}

	format := r.cfg.format
	if format == FormatAuto {
		head := make([]byte, sniffLen)
		n, err := f.ReadAt(head, 0)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
		}
		if format, err = codec.Detect(head[:n]); err != nil {
			return err
		}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewind %s: %w", ErrIO, path, err)
	}
	return r.extract(ctx, format, f, info.Size())
}

func (r *extractRun) fromReader(ctx context.Context, src io.Reader) error {
	var verifier digest.Verifier
	if r.cfg.digest != "" {
		verifier = r.cfg.digest.Verifier()
		src = io.TeeReader(src, verifier)
	}

	format := r.cfg.format
	if format == FormatAuto {
		var err error
		if format, src, err = codec.Sniff(src); err != nil {
			return err
		}
	}

	if format.RandomAccess() {
		spool, err := codec.NewSpool(ctx, r.cfg.fs, src)
		if err != nil {
			return err
		}
		defer spool.Close()
		if verifier != nil && !verifier.Verified() {
			return fmt.Errorf("%w: stream does not match %s", ErrDigestMismatch, r.cfg.digest)
		}
		return r.extract(ctx, format, spool, spool.Size())
	}

	tr, err := codec.NewReader(format, src)
	if err != nil {
		return err
	}
	defer tr.Close()
	if err := r.x.Stream(ctx, tr); err != nil {
		return err
	}
	if verifier == nil {
		return nil
	}
	// Trailing padding after the end-of-archive marker is part of the digest.
	if _, err := ioutil.CopyWithContext(ctx, io.Discard, src, nil); err != nil {
		return fmt.Errorf("%w: drain source: %w", ErrIO, err)
	}
	if !verifier.Verified() {
		return fmt.Errorf("%w: stream does not match %s", ErrDigestMismatch, r.cfg.digest)
	}
	return nil
}

// source is what a random-access archive is read from. Sequential formats
// only use it as an io.Reader.
type source interface {
	io.Reader
	io.ReaderAt
}

func (r *extractRun) extract(ctx context.Context, format Format, src source, size int64) error {
	if format.RandomAccess() {
		files, err := codec.OpenRandom(format, src, size)
		if err != nil {
			return err
		}
		return r.x.Random(ctx, files)
	}

	tr, err := codec.NewReader(format, src)
	if err != nil {
		return err
	}
	defer tr.Close()
	return r.x.Stream(ctx, tr)
}

func digestMismatch(want, got digest.Digest) error {
	return fmt.Errorf("%w: expected %s, got %s", ErrDigestMismatch, want, got)
}
