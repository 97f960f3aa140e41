// Package extract writes decoded archive entries beneath a destination
// directory.
//
// Entry names are cleaned and resolved against the destination; names that
// are absolute, contain ".." or otherwise resolve outside it fail with
// ErrPathTraversal before anything is written for that entry. Files are
// written to a temporary file in their final directory and renamed into
// place, so a partially extracted file is never visible.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/archiver/internal/archivetype"
	"github.com/meigma/archiver/internal/codec"
	"github.com/meigma/archiver/internal/ioutil"
	"github.com/meigma/archiver/internal/pathutil"
)

const (
	defaultWorkers  = 4
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
)

// Options configures an Extractor.
type Options struct {
	// FS is the filesystem written to. Nil uses the OS filesystem.
	FS afero.Fs

	// Overwrite replaces existing files. When false, existing files are
	// left untouched and the entry is skipped.
	Overwrite bool

	// PreserveMode applies archived permission bits. Otherwise files get
	// 0644 and directories 0755.
	PreserveMode bool

	// PreserveTimes applies archived modification times.
	PreserveTimes bool

	// Workers bounds parallel file writes for random-access archives.
	// Zero uses a default.
	Workers int

	// MaxEntries fails extraction once more entries are seen. Zero means
	// no limit.
	MaxEntries int

	// MaxBytes fails extraction once more content bytes are written.
	// Zero means no limit.
	MaxBytes int64

	// Progress receives an event after each entry.
	Progress archivetype.ProgressFunc

	// Logger receives debug output. Nil discards.
	Logger *slog.Logger
}

// Extractor writes entries beneath a single destination root. It is used
// for one archive and is safe for the concurrent writes it performs itself.
type Extractor struct {
	fs     afero.Fs
	root   string
	opts   Options
	logger *slog.Logger

	entries atomic.Int64
	bytes   atomic.Uint64
	total   int

	mu   sync.Mutex
	dirs []dirMeta
}

// dirMeta is applied to a directory after its children are written.
type dirMeta struct {
	path string
	hdr  archivetype.Header
}

// New returns an Extractor for dest. The destination must be an existing
// directory; it is never created.
func New(dest string, opts Options) (*Extractor, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if dest == "" {
		return nil, fmt.Errorf("%w: empty destination", archivetype.ErrWrite)
	}

	root := filepath.Clean(dest)
	info, err := fsys.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: destination %s does not exist", archivetype.ErrWrite, root)
		}
		return nil, fmt.Errorf("%w: stat destination %s: %w", archivetype.ErrWrite, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: destination %s is not a directory", archivetype.ErrWrite, root)
	}

	return &Extractor{fs: fsys, root: root, opts: opts, logger: logger}, nil
}

// Stats returns the number of entries and content bytes written so far.
func (x *Extractor) Stats() (entries int, bytes uint64) {
	return int(x.entries.Load()), x.bytes.Load()
}

// Stream extracts a sequential archive in stream order. Missing parent
// directories are created on demand.
func (x *Extractor) Stream(ctx context.Context, r codec.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, content, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: read archive: %w", archivetype.ErrIO, err)
		}

		rel, target, skip, err := x.resolve(hdr.Name)
		if err != nil {
			return err
		}
		if skip {
			continue
		}
		if err := x.admit(); err != nil {
			return err
		}
		if hdr.Dir {
			err = x.mkdir(target, hdr)
		} else {
			err = x.writeFile(ctx, target, hdr, content)
		}
		if err != nil {
			return err
		}
		x.report(rel)
	}
	return x.finish()
}

// Random extracts a random-access archive. Every name is validated first.
// Directories are created in depth order, then files are written in
// parallel.
func (x *Extractor) Random(ctx context.Context, files []codec.File) error {
	type planned struct {
		rel    string
		target string
		file   codec.File
	}

	var dirs []planned
	var regular []planned
	byTarget := make(map[string]int)
	for _, f := range files {
		rel, target, skip, err := x.resolve(f.Header.Name)
		if err != nil {
			return err
		}
		if skip {
			continue
		}
		p := planned{rel: rel, target: target, file: f}
		if f.Header.Dir {
			dirs = append(dirs, p)
			continue
		}
		// Later entries with the same name win, as they would when streamed.
		if i, dup := byTarget[target]; dup {
			regular[i] = p
			continue
		}
		byTarget[target] = len(regular)
		regular = append(regular, p)
	}

	x.total = len(dirs) + len(regular)
	if x.opts.MaxEntries > 0 && x.total > x.opts.MaxEntries {
		return fmt.Errorf("%w: archive has %d entries, limit is %d", archivetype.ErrInvalidInput, x.total, x.opts.MaxEntries)
	}

	sort.SliceStable(dirs, func(i, j int) bool {
		return pathutil.Depth(dirs[i].rel) < pathutil.Depth(dirs[j].rel)
	})
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		x.entries.Add(1)
		if err := x.mkdir(d.target, d.file.Header); err != nil {
			return err
		}
		x.report(d.rel)
	}

	workers := x.opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range regular {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			x.entries.Add(1)
			rc, err := p.file.Open()
			if err != nil {
				return fmt.Errorf("%w: open %s: %w", archivetype.ErrIO, p.rel, err)
			}
			defer rc.Close()
			if err := x.writeFile(gctx, p.target, p.file.Header, rc); err != nil {
				return err
			}
			x.report(p.rel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return x.finish()
}

// resolve cleans an archived name and maps it below the root. Names with
// no elements, such as "./", are skipped.
func (x *Extractor) resolve(name string) (rel, target string, skip bool, err error) {
	rel, err = pathutil.Clean(name)
	switch {
	case errors.Is(err, pathutil.ErrEmpty):
		x.logger.Debug("skipped empty entry name", "name", name)
		return "", "", true, nil
	case errors.Is(err, pathutil.ErrTraversal):
		return "", "", false, fmt.Errorf("%w: %q", archivetype.ErrPathTraversal, name)
	case err != nil:
		return "", "", false, fmt.Errorf("%w: entry name %q: %w", archivetype.ErrInvalidInput, name, err)
	}

	target, ok := pathutil.Within(x.root, rel)
	if !ok {
		return "", "", false, fmt.Errorf("%w: %q", archivetype.ErrPathTraversal, name)
	}
	return rel, target, false, nil
}

// admit counts a streamed entry against the entry limit.
func (x *Extractor) admit() error {
	n := x.entries.Add(1)
	if x.opts.MaxEntries > 0 && n > int64(x.opts.MaxEntries) {
		return fmt.Errorf("%w: archive exceeds %d entries", archivetype.ErrInvalidInput, x.opts.MaxEntries)
	}
	return nil
}

// mkdir creates target and its ancestors. Existing directories are fine.
func (x *Extractor) mkdir(target string, hdr archivetype.Header) error {
	if err := x.fs.MkdirAll(target, defaultDirMode); err != nil {
		return fmt.Errorf("%w: create directory %s: %w", archivetype.ErrWrite, target, err)
	}
	if x.opts.PreserveMode || x.opts.PreserveTimes {
		x.mu.Lock()
		x.dirs = append(x.dirs, dirMeta{path: target, hdr: hdr})
		x.mu.Unlock()
	}
	x.logger.Debug("created directory", "path", target)
	return nil
}

// writeFile writes content to a temporary file next to target and renames
// it into place.
func (x *Extractor) writeFile(ctx context.Context, target string, hdr archivetype.Header, content io.Reader) error {
	if !x.opts.Overwrite {
		if _, err := x.fs.Stat(target); err == nil {
			x.logger.Debug("skipped existing file", "path", target)
			return nil
		}
	}

	limit, err := x.budget(hdr)
	if err != nil {
		return err
	}

	dir := filepath.Dir(target)
	if err := x.fs.MkdirAll(dir, defaultDirMode); err != nil {
		return fmt.Errorf("%w: create directory %s: %w", archivetype.ErrWrite, dir, err)
	}
	tmp, tmpPath, err := ioutil.CreateTemp(x.fs, dir, ".archiver-")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %w", archivetype.ErrWrite, dir, err)
	}

	src := &ioutil.LimitedReader{R: content, Limit: limit}
	n, err := ioutil.CopyWithContext(ctx, &tagWriter{w: tmp}, src, nil)
	if err != nil {
		x.discard(tmp, tmpPath)
		var limitErr *ioutil.LimitError
		switch {
		case errors.As(err, &limitErr):
			return fmt.Errorf("%w: extracted content exceeds %d bytes", archivetype.ErrInvalidInput, x.opts.MaxBytes)
		case errors.Is(err, archivetype.ErrWrite), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			return fmt.Errorf("%w: read %s: %w", archivetype.ErrIO, hdr.Name, err)
		}
	}
	if total := x.bytes.Add(uint64(n)); x.opts.MaxBytes > 0 && total > uint64(x.opts.MaxBytes) { //nolint:gosec // n and MaxBytes are non-negative
		x.discard(tmp, tmpPath)
		return fmt.Errorf("%w: extracted content exceeds %d bytes", archivetype.ErrInvalidInput, x.opts.MaxBytes)
	}

	if err := tmp.Close(); err != nil {
		_ = x.fs.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("%w: close %s: %w", archivetype.ErrWrite, tmpPath, err)
	}

	mode := fs.FileMode(defaultFileMode)
	if x.opts.PreserveMode && hdr.Mode.Perm() != 0 {
		mode = hdr.Mode.Perm()
	}
	if err := x.fs.Chmod(tmpPath, mode); err != nil {
		_ = x.fs.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("%w: chmod %s: %w", archivetype.ErrWrite, target, err)
	}
	if x.opts.PreserveTimes && !hdr.ModTime.IsZero() {
		if err := x.fs.Chtimes(tmpPath, hdr.ModTime, hdr.ModTime); err != nil {
			_ = x.fs.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
			return fmt.Errorf("%w: chtimes %s: %w", archivetype.ErrWrite, target, err)
		}
	}
	if err := x.fs.Rename(tmpPath, target); err != nil {
		_ = x.fs.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("%w: rename to %s: %w", archivetype.ErrWrite, target, err)
	}

	x.logger.Debug("extracted file", "path", target, "bytes", n)
	return nil
}

// budget returns the read limit for the next file under MaxBytes.
func (x *Extractor) budget(hdr archivetype.Header) (uint64, error) {
	if x.opts.MaxBytes <= 0 {
		return 0, nil
	}
	remaining := x.opts.MaxBytes - int64(x.bytes.Load()) //nolint:gosec // bounded by MaxBytes
	if hdr.Size > remaining {
		return 0, fmt.Errorf("%w: extracted content exceeds %d bytes", archivetype.ErrInvalidInput, x.opts.MaxBytes)
	}
	// A zero limit disables the reader check; the total is rechecked after
	// the copy.
	return uint64(max(remaining, 1)), nil
}

func (x *Extractor) discard(f afero.File, path string) {
	_ = f.Close()         //nolint:errcheck // best-effort cleanup
	_ = x.fs.Remove(path) //nolint:errcheck // best-effort cleanup
}

// finish applies directory metadata once all children exist, deepest
// directories first.
func (x *Extractor) finish() error {
	x.mu.Lock()
	dirs := x.dirs
	x.dirs = nil
	x.mu.Unlock()

	sort.SliceStable(dirs, func(i, j int) bool {
		return len(dirs[i].path) > len(dirs[j].path)
	})
	for _, d := range dirs {
		if x.opts.PreserveMode && d.hdr.Mode.Perm() != 0 {
			if err := x.fs.Chmod(d.path, d.hdr.Mode.Perm()); err != nil {
				return fmt.Errorf("%w: chmod %s: %w", archivetype.ErrWrite, d.path, err)
			}
		}
		if x.opts.PreserveTimes && !d.hdr.ModTime.IsZero() {
			if err := x.fs.Chtimes(d.path, d.hdr.ModTime, d.hdr.ModTime); err != nil {
				return fmt.Errorf("%w: chtimes %s: %w", archivetype.ErrWrite, d.path, err)
			}
		}
	}
	return nil
}

func (x *Extractor) report(rel string) {
	if x.opts.Progress == nil {
		return
	}
	x.opts.Progress(archivetype.ProgressEvent{
		Stage:        archivetype.StageExtracting,
		Path:         rel,
		BytesDone:    x.bytes.Load(),
		EntriesDone:  int(x.entries.Load()),
		EntriesTotal: x.total,
	})
}

// tagWriter marks destination write failures with ErrWrite.
type tagWriter struct {
	w io.Writer
}

func (w *tagWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %w", archivetype.ErrWrite, err)
	}
	return n, nil
}
