// Package normalize resolves caller inputs into the ordered entry sequence
// consumed by the codecs.
package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/woozymasta/pathrules"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/archiver/internal/archivetype"
	"github.com/meigma/archiver/internal/pathutil"
	"github.com/meigma/archiver/internal/platform"
)

// defaultWorkers bounds concurrent resolution of top-level inputs.
const defaultWorkers = 4

// Kind identifies the shape of a caller input.
type Kind uint8

const (
	// KindPath is a filesystem path to a file or directory.
	KindPath Kind = iota + 1

	// KindBytes is an in-memory buffer.
	KindBytes

	// KindReader is a readable stream.
	KindReader

	// KindText is string content.
	KindText

	// KindDescriptor is an explicit {name, type, data} triple.
	KindDescriptor
)

// Item is one caller input before resolution.
type Item struct {
	Kind Kind

	// Name overrides the inferred entry name. Only descriptors set it.
	Name string

	// Type overrides the inferred entry type. Only descriptors set it.
	Type archivetype.Type

	// Data is a path string, []byte, io.Reader or text string depending on
	// Kind and Type.
	Data any
}

// Options configures normalization.
type Options struct {
	// FS resolves paths. Nil uses the OS filesystem.
	FS afero.Fs

	// Rules filter files found while expanding directories. Directories
	// themselves are always kept.
	Rules []pathrules.Rule

	// MatcherOptions configures rule matching. The zero value includes
	// anything no rule matches.
	MatcherOptions pathrules.MatcherOptions

	// Workers bounds concurrent resolution. Zero uses a default.
	Workers int

	// Logger receives debug output. Nil discards.
	Logger *slog.Logger

	// Now stamps entries that have no backing file. Zero uses time.Now.
	Now time.Time
}

// Set is the resolved entry sequence of one operation. It owns the caller
// readers referenced by stream entries.
type Set struct {
	Entries []archivetype.Entry

	owned []*ownedReader
}

// Close releases every caller reader that was not consumed yet.
// It is safe to call more than once.
func (s *Set) Close() error {
	var errs []error
	for _, r := range s.owned {
		errs = append(errs, r.release())
	}
	return errors.Join(errs...)
}

// normalizer holds per-call state.
type normalizer struct {
	fs      afero.Fs
	matcher *pathrules.Matcher
	logger  *slog.Logger
	now     time.Time
}

// Normalize resolves items into entries.
//
// Entries follow item order. Directories expand to the directory itself
// followed by its descendants in lexical order. Nameless buffer, stream and
// text items are named by their position among nameless items ("0", "1",
// ...). Caller readers are closed on failure; on success they are owned by
// the returned Set.
func Normalize(ctx context.Context, items []Item, opts Options) (*Set, error) {
	n := &normalizer{fs: opts.FS, logger: opts.Logger, now: opts.Now}
	if n.fs == nil {
		n.fs = afero.NewOsFs()
	}
	if n.logger == nil {
		n.logger = slog.New(slog.DiscardHandler)
	}
	if n.now.IsZero() {
		n.now = time.Now()
	}

	set := &Set{}
	for i := range items {
		if r, ok := items[i].Data.(io.Reader); ok {
			owned := &ownedReader{r: r}
			set.owned = append(set.owned, owned)
			items[i].Data = owned
		}
	}

	entries, err := n.resolve(ctx, items, opts)
	if err != nil {
		_ = set.Close() //nolint:errcheck // the resolution error wins
		return nil, err
	}
	set.Entries = entries
	return set, nil
}

func (n *normalizer) resolve(ctx context.Context, items []Item, opts Options) ([]archivetype.Entry, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no inputs", archivetype.ErrInvalidInput)
	}

	if len(opts.Rules) > 0 {
		matcher, err := pathrules.NewMatcher(opts.Rules, opts.MatcherOptions)
		if err != nil {
			return nil, fmt.Errorf("%w: compile rules: %w", archivetype.ErrInvalidInput, err)
		}
		n.matcher = matcher
	}

	names := positionalNames(items)

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	results := make([][]archivetype.Entry, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries, err := n.resolveItem(gctx, &items[i], names[i])
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []archivetype.Entry //nolint:prealloc // size unknown until expansion
	seen := make(map[string]struct{})
	for _, group := range results {
		for _, e := range group {
			if _, dup := seen[e.Name]; dup {
				return nil, fmt.Errorf("%w: duplicate entry name %q", archivetype.ErrInvalidInput, e.Name)
			}
			seen[e.Name] = struct{}{}
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: inputs resolved to no entries", archivetype.ErrInvalidInput)
	}
	return entries, nil
}

// positionalNames assigns "0", "1", ... to nameless content items, in
// input order. Other items get "".
func positionalNames(items []Item) []string {
	names := make([]string, len(items))
	next := 0
	for i := range items {
		if items[i].Name != "" || !isContentItem(&items[i]) {
			continue
		}
		names[i] = strconv.Itoa(next)
		next++
	}
	return names
}

// isContentItem reports whether an item carries content rather than a path.
func isContentItem(it *Item) bool {
	switch it.Kind {
	case KindBytes, KindReader, KindText:
		return true
	case KindDescriptor:
		switch it.Type {
		case archivetype.TypeBuffer, archivetype.TypeStream, archivetype.TypeString:
			return true
		case archivetype.TypeUnknown:
			switch it.Data.(type) {
			case []byte, io.Reader:
				return true
			}
		}
	}
	return false
}

func (n *normalizer) resolveItem(ctx context.Context, it *Item, position string) ([]archivetype.Entry, error) {
	typ, err := itemType(it)
	if err != nil {
		return nil, err
	}

	name := it.Name
	if name == "" {
		name = position
	}

	switch typ {
	case archivetype.TypeFile, archivetype.TypeDirectory, archivetype.TypeUnknown:
		path, ok := it.Data.(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("%w: %s input needs a path", archivetype.ErrInvalidInput, typeLabel(typ))
		}
		return n.resolvePath(ctx, path, name, typ)
	case archivetype.TypeBuffer:
		b, ok := it.Data.([]byte)
		if !ok || b == nil {
			return nil, fmt.Errorf("%w: buffer input needs []byte data", archivetype.ErrInvalidInput)
		}
		return n.contentEntry(name, typ, int64(len(b)), func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		})
	case archivetype.TypeString:
		s, ok := it.Data.(string)
		if !ok {
			return nil, fmt.Errorf("%w: string input needs string data", archivetype.ErrInvalidInput)
		}
		return n.contentEntry(name, typ, int64(len(s)), func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(s)), nil
		})
	case archivetype.TypeStream:
		r, ok := it.Data.(*ownedReader)
		if !ok {
			return nil, fmt.Errorf("%w: stream input needs an io.Reader", archivetype.ErrInvalidInput)
		}
		return n.contentEntry(name, typ, -1, r.open)
	default:
		return nil, fmt.Errorf("%w: unsupported entry type %s", archivetype.ErrInvalidInput, typ)
	}
}

// itemType returns the declared or inferred type. TypeUnknown means the
// item is a path whose type comes from the filesystem.
func itemType(it *Item) (archivetype.Type, error) {
	switch it.Kind {
	case KindPath:
		return archivetype.TypeUnknown, nil
	case KindBytes:
		return archivetype.TypeBuffer, nil
	case KindReader:
		return archivetype.TypeStream, nil
	case KindText:
		return archivetype.TypeString, nil
	case KindDescriptor:
	default:
		return archivetype.TypeUnknown, fmt.Errorf("%w: unknown input kind %d", archivetype.ErrInvalidInput, it.Kind)
	}

	if it.Data == nil {
		return archivetype.TypeUnknown, fmt.Errorf("%w: descriptor %q has no data", archivetype.ErrInvalidInput, it.Name)
	}
	if it.Type != archivetype.TypeUnknown {
		return it.Type, nil
	}
	switch it.Data.(type) {
	case string:
		return archivetype.TypeUnknown, nil
	case []byte:
		return archivetype.TypeBuffer, nil
	case io.Reader:
		return archivetype.TypeStream, nil
	default:
		return archivetype.TypeUnknown, fmt.Errorf("%w: descriptor %q has unsupported data %T", archivetype.ErrInvalidInput, it.Name, it.Data)
	}
}

func typeLabel(t archivetype.Type) string {
	if t == archivetype.TypeUnknown {
		return "path"
	}
	return t.String()
}

func (n *normalizer) contentEntry(name string, typ archivetype.Type, size int64, open archivetype.OpenFunc) ([]archivetype.Entry, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	return []archivetype.Entry{{
		Name:    clean,
		Type:    typ,
		Mode:    0o644,
		ModTime: n.now,
		Size:    size,
		Open:    open,
	}}, nil
}

// resolvePath stats path and expands it. want is TypeUnknown for inferred
// paths, or the declared file/directory type for descriptors.
func (n *normalizer) resolvePath(ctx context.Context, path, name string, want archivetype.Type) ([]archivetype.Entry, error) {
	info, err := n.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", archivetype.ErrNotFound, path, err)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", archivetype.ErrIO, path, err)
	}

	if name == "" {
		name = filepath.Base(filepath.Clean(path))
	}
	root, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	switch {
	case info.IsDir():
		if want == archivetype.TypeFile {
			return nil, fmt.Errorf("%w: %s is a directory, not a file", archivetype.ErrInvalidInput, path)
		}
		return n.expandDir(ctx, path, root, info)
	case info.Mode().IsRegular():
		if want == archivetype.TypeDirectory {
			return nil, fmt.Errorf("%w: %s is a file, not a directory", archivetype.ErrInvalidInput, path)
		}
		return []archivetype.Entry{n.fileEntry(path, root, info)}, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a regular file or directory", archivetype.ErrInvalidInput, path)
	}
}

func (n *normalizer) fileEntry(path, name string, info fs.FileInfo) archivetype.Entry {
	fsys := n.fs
	uid, gid := platform.Owner(info)
	return archivetype.Entry{
		Name:    name,
		Type:    archivetype.TypeFile,
		Mode:    info.Mode().Perm(),
		ModTime: info.ModTime(),
		Size:    info.Size(),
		UID:     uid,
		GID:     gid,
		Open: func() (io.ReadCloser, error) {
			f, err := fsys.Open(path)
			if err != nil {
				return nil, fmt.Errorf("%w: open %s: %w", archivetype.ErrIO, path, err)
			}
			return f, nil
		},
	}
}

func dirEntry(name string, info fs.FileInfo) archivetype.Entry {
	uid, gid := platform.Owner(info)
	return archivetype.Entry{
		Name:    name,
		Type:    archivetype.TypeDirectory,
		Mode:    info.Mode().Perm(),
		ModTime: info.ModTime(),
		UID:     uid,
		GID:     gid,
	}
}

// expandDir walks dir in lexical order. Symbolic links and special files
// are skipped.
func (n *normalizer) expandDir(ctx context.Context, dir, root string, info fs.FileInfo) ([]archivetype.Entry, error) {
	entries := []archivetype.Entry{dirEntry(root, info)}

	err := afero.Walk(n.fs, dir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("%w: walk %s: %w", archivetype.ErrIO, path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("%w: relative path of %s: %w", archivetype.ErrIO, path, err)
		}
		rel = filepath.ToSlash(rel)
		name := pathutil.Join(root, rel)

		switch {
		case fi.Mode()&fs.ModeSymlink != 0:
			n.logger.Debug("skipped symlink", "path", path)
			return nil
		case fi.IsDir():
			entries = append(entries, dirEntry(name, fi))
			return nil
		case fi.Mode().IsRegular():
			if n.matcher != nil && !n.matcher.Included(rel, false) {
				n.logger.Debug("excluded by rules", "path", rel)
				return nil
			}
			entries = append(entries, n.fileEntry(path, name, fi))
			return nil
		default:
			n.logger.Debug("skipped special file", "path", path)
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func cleanName(name string) (string, error) {
	clean, err := pathutil.Clean(name)
	if err != nil {
		return "", fmt.Errorf("%w: entry name %q: %w", archivetype.ErrInvalidInput, name, err)
	}
	return clean, nil
}

// ownedReader wraps a caller reader so it is read at most once and closed
// exactly once.
type ownedReader struct {
	r      io.Reader
	mu     sync.Mutex
	opened bool
	closed bool
}

// Read lets ownedReader satisfy io.Reader so descriptors keep their shape.
func (o *ownedReader) Read(p []byte) (int, error) {
	return o.r.Read(p)
}

func (o *ownedReader) open() (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.opened || o.closed {
		return nil, fmt.Errorf("%w: stream already consumed", archivetype.ErrInvalidInput)
	}
	o.opened = true
	return &ownedReadCloser{o: o}, nil
}

func (o *ownedReader) release() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if c, ok := o.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type ownedReadCloser struct {
	o *ownedReader
}

func (r *ownedReadCloser) Read(p []byte) (int, error) {
	return r.o.r.Read(p)
}

func (r *ownedReadCloser) Close() error {
	return r.o.release()
}
