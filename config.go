package archiver

import (
	"fmt"

	"github.com/meigma/archiver/internal/config"
)

// Config holds operation defaults that can be loaded from the environment.
type Config = config.Config

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig returns the defaults overridden by ARCHIVER_* environment
// variables, such as ARCHIVER_ARCHIVE_FORMAT=tar or
// ARCHIVER_EXTRACT_MAX_BYTES=1073741824.
func LoadConfig() (*Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return cfg, nil
}

// WithConfig applies the archive section of cfg. Options given after it
// take precedence.
func WithConfig(cfg *Config) ArchiveOption {
	return func(c *archiveConfig) {
		if cfg == nil {
			return
		}
		if err := cfg.Validate(); err != nil {
			c.err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
			return
		}
		format, err := ParseFormat(cfg.Archive.Format)
		if err != nil {
			c.err = err
			return
		}
		c.format = format
		c.output = ParseOutput(cfg.Archive.Output)
		c.level = cfg.Archive.CompressionLevel
		c.workers = cfg.Archive.Workers
		c.timeout = cfg.Archive.Timeout
		if cfg.Archive.MinCompressSize > 0 {
			c.skip = append(c.skip, DefaultSkipCompression(cfg.Archive.MinCompressSize))
		}
		c.rules = append(c.rules, excludeRules(cfg.Archive.Exclude)...)
	}
}

// ExtractWithConfig applies the extract section of cfg. Options given after
// it take precedence.
func ExtractWithConfig(cfg *Config) ExtractOption {
	return func(c *extractConfig) {
		if cfg == nil {
			return
		}
		if err := cfg.Validate(); err != nil {
			c.err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
			return
		}
		format, err := ParseFormat(cfg.Extract.Format)
		if err != nil {
			c.err = err
			return
		}
		c.format = format
		c.overwrite = cfg.Extract.Overwrite
		c.preserveMode = cfg.Extract.PreserveMode
		c.preserveTimes = cfg.Extract.PreserveTimes
		c.workers = cfg.Extract.Workers
		c.maxEntries = cfg.Extract.MaxEntries
		c.maxBytes = cfg.Extract.MaxBytes
		c.timeout = cfg.Extract.Timeout
	}
}
