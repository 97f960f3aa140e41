package archiver

import (
	"log/slog"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	format        Format
	fs            afero.Fs
	overwrite     bool
	preserveMode  bool
	preserveTimes bool
	workers       int
	digest        digest.Digest
	maxEntries    int
	maxBytes      int64
	timeout       time.Duration
	progress      ProgressFunc
	logger        *slog.Logger
	err           error
}

func newExtractConfig(opts []ExtractOption) *extractConfig {
	cfg := &extractConfig{
		format:       DefaultFormat,
		overwrite:    true,
		preserveMode: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.fs == nil {
		cfg.fs = afero.NewOsFs()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// ExtractWithFormat sets the source format. Default: [FormatZip].
// [FormatAuto] detects the format from the leading bytes instead.
func ExtractWithFormat(f Format) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.format = f
	}
}

// ExtractWithFS sets the filesystem for the destination, path sources and
// spooling. Default: the OS filesystem.
func ExtractWithFS(fsys afero.Fs) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.fs = fsys
	}
}

// ExtractWithOverwrite controls whether existing files are replaced.
// When false, existing files are kept and their entries skipped.
// Default: true.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.overwrite = overwrite
	}
}

// ExtractWithPreserveMode applies archived permission bits. When false,
// files get 0644 and directories 0755. Default: true.
func ExtractWithPreserveMode(preserve bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.preserveMode = preserve
	}
}

// ExtractWithPreserveTimes applies archived modification times.
// Default: false.
func ExtractWithPreserveTimes(preserve bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.preserveTimes = preserve
	}
}

// ExtractWithWorkers bounds parallel file writes for zip archives.
func ExtractWithWorkers(n int) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.workers = n
	}
}

// ExtractWithDigest verifies the archive bytes against d.
//
// Buffer and file sources, and zip streams, are verified before anything is
// written. Tar streams are verified as they are consumed; on mismatch the
// files already extracted stay in place and [ErrDigestMismatch] is
// returned.
func ExtractWithDigest(d digest.Digest) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.digest = d
	}
}

// ExtractWithMaxEntries fails extraction when the archive holds more than
// n entries. Zero means no limit.
func ExtractWithMaxEntries(n int) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.maxEntries = n
	}
}

// ExtractWithMaxBytes fails extraction when more than n content bytes
// would be written. Zero means no limit.
func ExtractWithMaxBytes(n int64) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.maxBytes = n
	}
}

// ExtractWithTimeout bounds the whole extraction. Zero means no timeout.
func ExtractWithTimeout(d time.Duration) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.timeout = d
	}
}

// ExtractWithProgress sets a callback to receive progress updates.
// The callback may be invoked concurrently and must be safe for concurrent use.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.progress = fn
	}
}

// ExtractWithLogger sets the logger. Default: discard.
func ExtractWithLogger(logger *slog.Logger) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.logger = logger
	}
}
