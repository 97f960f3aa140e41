package materialize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/meigma/archiver/internal/archivetype"
	"github.com/meigma/archiver/internal/ioutil"
)

// File runs produce into a temporary file next to target and renames it
// over target on success.
//
// The parent directory of target must already exist. A partially written
// archive is never visible at target: on any failure the temporary file is
// removed and target is left untouched.
func File(ctx context.Context, fsys afero.Fs, target string, produce Producer) (*Result, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if target == "" {
		return nil, fmt.Errorf("%w: empty output path", archivetype.ErrWrite)
	}

	dir := filepath.Dir(target)
	info, err := fsys.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: output directory %s does not exist", archivetype.ErrWrite, dir)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", archivetype.ErrWrite, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", archivetype.ErrWrite, dir)
	}
	if info, err := fsys.Stat(target); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: output path %s is a directory", archivetype.ErrWrite, target)
	}

	tmp, tmpPath, err := ioutil.CreateTemp(fsys, dir, "."+filepath.Base(target)+".tmp-")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file in %s: %w", archivetype.ErrWrite, dir, err)
	}

	dw := ioutil.NewDigestWriter(&writeErrWriter{w: tmp})
	if err := produce(ctx, dw); err != nil {
		discard(fsys, tmp, tmpPath)
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		discard(fsys, tmp, tmpPath)
		return nil, fmt.Errorf("%w: sync %s: %w", archivetype.ErrWrite, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("%w: close %s: %w", archivetype.ErrWrite, tmpPath, err)
	}
	if err := fsys.Chmod(tmpPath, 0o644); err != nil {
		_ = fsys.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("%w: chmod %s: %w", archivetype.ErrWrite, tmpPath, err)
	}
	if err := fsys.Rename(tmpPath, target); err != nil {
		_ = fsys.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("%w: rename to %s: %w", archivetype.ErrWrite, target, err)
	}

	return &Result{Path: target, Digest: dw.Digest(), Size: dw.Size()}, nil
}

func discard(fsys afero.Fs, f afero.File, path string) {
	_ = f.Close()         //nolint:errcheck // best-effort cleanup
	_ = fsys.Remove(path) //nolint:errcheck // best-effort cleanup
}

// writeErrWriter tags write failures with ErrWrite.
type writeErrWriter struct {
	w io.Writer
}

func (w *writeErrWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %w", archivetype.ErrWrite, err)
	}
	return n, nil
}
