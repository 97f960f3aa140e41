// Package config loads archiver defaults from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ARCHIVER_"

// Config holds operation defaults for archiving and extraction.
type Config struct {
	Archive ArchiveConfig `koanf:"archive"`
	Extract ExtractConfig `koanf:"extract"`
}

// ArchiveConfig holds archive defaults.
type ArchiveConfig struct {
	// Format is the archive format token.
	Format string `koanf:"format" validate:"oneof=zip tar tar.gz tgz targz tar.zst tzst tar.zstd"`

	// Output is "buffer", "stream" or a file path.
	Output string `koanf:"output" validate:"required"`

	// CompressionLevel is passed to the compressor. Zero selects its default.
	CompressionLevel int `koanf:"compression_level" validate:"gte=-2,lte=22"`

	// MinCompressSize stores smaller zip entries uncompressed.
	MinCompressSize int64 `koanf:"min_compress_size" validate:"gte=0"`

	// Workers bounds concurrent input resolution.
	Workers int `koanf:"workers" validate:"gte=1,lte=256"`

	// Exclude lists gitignore-style patterns dropped during directory
	// expansion.
	Exclude []string `koanf:"exclude"`

	// Timeout bounds a whole operation. Zero means no timeout.
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

// ExtractConfig holds extraction defaults.
type ExtractConfig struct {
	Format        string        `koanf:"format" validate:"oneof=auto zip tar tar.gz tgz targz tar.zst tzst tar.zstd"`
	Overwrite     bool          `koanf:"overwrite"`
	PreserveMode  bool          `koanf:"preserve_mode"`
	PreserveTimes bool          `koanf:"preserve_times"`
	Workers       int           `koanf:"workers" validate:"gte=1,lte=256"`
	MaxEntries    int           `koanf:"max_entries" validate:"gte=0"`
	MaxBytes      int64         `koanf:"max_bytes" validate:"gte=0"`
	Timeout       time.Duration `koanf:"timeout" validate:"gte=0"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Archive: ArchiveConfig{
			Format:  "zip",
			Output:  "buffer",
			Workers: 4,
		},
		Extract: ExtractConfig{
			Format:       "zip",
			Overwrite:    true,
			PreserveMode: true,
			Workers:      4,
		},
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
