package archiver

import (
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"github.com/woozymasta/pathrules"
)

// ArchiveOption configures Archive.
type ArchiveOption func(*archiveConfig)

type archiveConfig struct {
	format   Format
	output   Output
	fs       afero.Fs
	rules    []pathrules.Rule
	matcher  pathrules.MatcherOptions
	skip     []SkipCompressionFunc
	level    int
	workers  int
	timeout  time.Duration
	progress ProgressFunc
	logger   *slog.Logger
	err      error
}

func newArchiveConfig(opts []ArchiveOption) *archiveConfig {
	cfg := &archiveConfig{
		format:  DefaultFormat,
		output:  OutputBuffer,
		skip:    []SkipCompressionFunc{DefaultSkipCompression(0)},
		matcher: pathrules.MatcherOptions{DefaultAction: pathrules.ActionInclude},
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

func (c *archiveConfig) emit(e ProgressEvent) {
	if c.progress != nil {
		c.progress(e)
	}
}

// WithFormat sets the archive format. Default: [FormatZip].
func WithFormat(f Format) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.format = f
	}
}

// WithOutput sets how the archive is returned. Default: [OutputBuffer].
func WithOutput(o Output) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.output = o
	}
}

// WithFS sets the filesystem used to resolve input paths, write file
// output and spool streams. Default: the OS filesystem.
func WithFS(fsys afero.Fs) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.fs = fsys
	}
}

// WithRules filters files found while expanding directory inputs.
// Patterns use gitignore syntax and are matched against paths relative to
// the expanded directory; the last matching rule wins. Directories
// themselves are always kept.
func WithRules(rules ...pathrules.Rule) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.rules = append(cfg.rules, rules...)
	}
}

// WithExclude drops files matching any of the gitignore-style patterns
// from expanded directories.
func WithExclude(patterns ...string) ArchiveOption {
	return WithRules(excludeRules(patterns)...)
}

// WithCaseInsensitiveRules matches rule patterns without regard to case.
func WithCaseInsensitiveRules(enabled bool) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.matcher.CaseInsensitive = enabled
	}
}

// WithSkipCompression adds predicates that store zip entries uncompressed.
// If any predicate returns true, compression is skipped for that entry.
// Entries with already-compressed extensions are always stored.
func WithSkipCompression(fns ...SkipCompressionFunc) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.skip = append(cfg.skip, fns...)
	}
}

// WithCompressionLevel sets the compressor level for zip, tar.gz and
// tar.zst. Zero selects the compressor default.
func WithCompressionLevel(level int) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.level = level
	}
}

// WithWorkers bounds how many inputs are resolved concurrently.
func WithWorkers(n int) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.workers = n
	}
}

// WithTimeout bounds the whole operation, including consumption of a
// stream output. Zero means no timeout.
func WithTimeout(d time.Duration) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.timeout = d
	}
}

// WithProgress sets a callback to receive progress updates.
// The callback may be invoked concurrently and must be safe for concurrent use.
func WithProgress(fn ProgressFunc) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.progress = fn
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(logger *slog.Logger) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.logger = logger
	}
}

func excludeRules(patterns []string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, p := range patterns {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionExclude, Pattern: p})
	}
	return rules
}
