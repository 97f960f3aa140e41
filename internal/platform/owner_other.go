//go:build !unix

// Package platform holds OS specific file metadata helpers.
package platform

import "io/fs"

// Owner reports 0, 0 where numeric file owners are not available.
func Owner(fs.FileInfo) (uid, gid int) {
	return 0, 0
}
