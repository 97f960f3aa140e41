//go:build unix

// Package platform holds OS specific file metadata helpers.
package platform

import (
	"io/fs"
	"syscall"
)

// Owner returns the numeric owner of a file. Infos that do not come from
// the OS, such as in-memory filesystems, report 0, 0.
func Owner(info fs.FileInfo) (uid, gid int) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return int(stat.Uid), int(stat.Gid)
	}
	return 0, 0
}
