//go:build linux && !tinygo

package storage

import (
	"golang.org/x/sys/unix"

	"ftpdisplay-go/types"
)

// Usage reports capacity of the filesystem holding the directory.
func (d *DirBackend) Usage() (types.StorageUsage, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(d.Path, &fs); err != nil {
		return types.StorageUsage{}, err
	}
	bs := uint64(fs.Bsize)
	return types.StorageUsage{Total: fs.Blocks * bs, Free: fs.Bavail * bs}, nil
}
