// Package pathutil provides path manipulation for slash-separated archive paths.
package pathutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalid is returned for names that cannot be used as entry names.
	ErrInvalid = errors.New("invalid entry name")

	// ErrEmpty is returned for names with no path elements.
	ErrEmpty = fmt.Errorf("%w: empty name", ErrInvalid)

	// ErrTraversal is returned for absolute names and names containing "..".
	ErrTraversal = fmt.Errorf("%w: name escapes root", ErrInvalid)
)

// Clean converts an entry name into canonical slash-separated form.
//
// Backslashes become slashes, empty and "." segments are dropped and
// leading or trailing slashes are removed. Whitespace is kept as part of
// the name. Absolute names, Windows drive
// prefixes and ".." segments fail with ErrTraversal, names without elements
// with ErrEmpty. All errors match ErrInvalid.
func Clean(name string) (string, error) {
	if name == "" {
		return "", ErrEmpty
	}
	if strings.ContainsRune(name, 0) {
		return "", ErrInvalid
	}
	raw := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(raw, "/") || hasDrivePrefix(raw) {
		return "", ErrTraversal
	}

	parts := strings.Split(raw, "/")
	clean := parts[:0]
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrTraversal
		default:
			clean = append(clean, part)
		}
	}
	if len(clean) == 0 {
		return "", ErrEmpty
	}
	return strings.Join(clean, "/"), nil
}

// Join appends a slash-separated child to a base entry name.
func Join(base, child string) string {
	if base == "" || base == "." {
		return child
	}
	if child == "" || child == "." {
		return base
	}
	return base + "/" + child
}

// Depth returns the number of slash-separated elements in a clean name.
func Depth(name string) int {
	if name == "" {
		return 0
	}
	return strings.Count(name, "/") + 1
}

// Within resolves a clean entry name against root and reports whether the
// result stays inside root. The returned path uses the OS separator.
func Within(root, name string) (string, bool) {
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", false
	}
	return target, true
}

func hasDrivePrefix(path string) bool {
	if len(path) < 2 {
		return false
	}
	c := path[0]
	return ((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) && path[1] == ':'
}
