package archiver

import (
	"context"
	"fmt"
	"io"

	"github.com/meigma/archiver/internal/codec"
	"github.com/meigma/archiver/internal/materialize"
	"github.com/meigma/archiver/internal/normalize"
)

// Archive packs in into an archive and returns it in the requested output
// form.
//
// Inputs are resolved up front, so missing paths and malformed descriptors
// fail before any archive bytes are produced. Entries follow input order;
// directories expand to themselves followed by their descendants in
// lexical order.
//
// With [OutputStream] the archive is produced while Result.Stream is read.
// Encoding failures then surface from Read wrapped in [ErrIO], and closing
// the stream early stops encoding and releases every input before Close
// returns.
//
// With [OutputFile] the parent directory must exist; otherwise Archive
// fails with [ErrWrite] and creates nothing.
func Archive(ctx context.Context, in Input, opts ...ArchiveOption) (*Result, error) {
	cfg := newArchiveConfig(opts)
	if cfg.err != nil {
		return nil, cfg.err
	}
	if err := cfg.format.Validate(); err != nil {
		return nil, err
	}

	cancel := context.CancelFunc(func() {})
	if cfg.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
	}

	log := cfg.logger.With("format", cfg.format.String(), "output", cfg.output.String())
	log.Info("archive started", "inputs", in.Len())

	set, err := normalize.Normalize(ctx, in.normalizeItems(), normalize.Options{
		FS:             cfg.fs,
		Rules:          cfg.rules,
		MatcherOptions: cfg.matcher,
		Workers:        cfg.workers,
		Logger:         cfg.logger,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	total := len(set.Entries)
	cfg.emit(ProgressEvent{Stage: StageEnumerating, EntriesTotal: total})

	run := &archiveRun{cfg: cfg, set: set}

	var res *materialize.Result
	switch {
	case cfg.output.IsStream():
		res = materialize.Stream(ctx, func(ctx context.Context, w io.Writer) error {
			defer cancel()
			return run.produce(ctx, w)
		})
	case cfg.output.IsFile():
		res, err = materialize.File(ctx, cfg.fs, cfg.output.Path(), run.produce)
	default:
		res, err = materialize.Buffer(ctx, run.produce)
	}
	if !cfg.output.IsStream() {
		cancel()
		_ = set.Close() //nolint:errcheck // already released unless materialization failed early
	}
	if err != nil {
		return nil, err
	}

	log.Info("archive created", "entries", total, "bytes", res.Size, "digest", res.Digest.String())
	return &Result{
		Output:  cfg.output,
		Format:  cfg.format,
		Bytes:   res.Bytes,
		Stream:  res.Stream,
		Path:    res.Path,
		Digest:  res.Digest,
		Size:    res.Size,
		Entries: total,
	}, nil
}

// archiveRun encodes one resolved entry set.
type archiveRun struct {
	cfg *archiveConfig
	set *normalize.Set
}

// produce writes the archive to w and releases the entry set.
func (r *archiveRun) produce(ctx context.Context, w io.Writer) error {
	defer func() {
		if err := r.set.Close(); err != nil {
			r.cfg.logger.Debug("closing inputs", "error", err)
		}
	}()

	cw, err := codec.NewWriter(r.cfg.format, w, codec.WriterOptions{
		FS:              r.cfg.fs,
		SkipCompression: r.cfg.skip,
		Level:           r.cfg.level,
	})
	if err != nil {
		return err
	}

	total := len(r.set.Entries)
	var done uint64
	for i := range r.set.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := &r.set.Entries[i]
		n, err := cw.WriteEntry(ctx, e)
		if err != nil {
			return err
		}
		done += n
		r.cfg.logger.Debug("archived entry", "name", e.Name, "type", e.Type.String(), "bytes", n)
		r.cfg.emit(ProgressEvent{
			Stage:        StageArchiving,
			Path:         e.Name,
			BytesDone:    done,
			EntriesDone:  i + 1,
			EntriesTotal: total,
		})
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("%w: finish archive: %w", ErrIO, err)
	}
	return nil
}
