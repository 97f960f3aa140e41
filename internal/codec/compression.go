package codec

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// SkipCompressionFunc returns true when an entry should be stored
// uncompressed inside a zip archive. It is called once per entry and should
// be inexpensive. info describes the entry; Size is -1 for streams.
type SkipCompressionFunc func(name string, info fs.FileInfo) bool

// DefaultSkipCompression returns a SkipCompressionFunc that skips small
// files and known already-compressed extensions.
func DefaultSkipCompression(minSize int64) SkipCompressionFunc {
	return func(name string, info fs.FileInfo) bool {
		if info != nil && minSize > 0 && info.Size() >= 0 && info.Size() < minSize {
			return true
		}
		ext := strings.ToLower(filepath.Ext(name))
		_, ok := defaultSkipCompressionExts[ext]
		return ok
	}
}

// ShouldSkip checks if any predicate returns true for the given entry.
func ShouldSkip(name string, info fs.FileInfo, predicates []SkipCompressionFunc) bool {
	for _, fn := range predicates {
		if fn == nil {
			continue
		}
		if fn(name, info) {
			return true
		}
	}
	return false
}

var defaultSkipCompressionExts = map[string]struct{}{
	".7z":    {},
	".aac":   {},
	".avif":  {},
	".br":    {},
	".bz2":   {},
	".flac":  {},
	".gif":   {},
	".gz":    {},
	".heic":  {},
	".jar":   {},
	".jpeg":  {},
	".jpg":   {},
	".mkv":   {},
	".mov":   {},
	".mp3":   {},
	".mp4":   {},
	".ogg":   {},
	".pdf":   {},
	".png":   {},
	".rar":   {},
	".tgz":   {},
	".webm":  {},
	".webp":  {},
	".woff2": {},
	".xz":    {},
	".zip":   {},
	".zst":   {},
}
