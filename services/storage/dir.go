package storage

import (
	"fmt"
	"os"

	"ftpdisplay-go/errcode"
)

// DirBackend serves a directory as a mounted filesystem. With Create set a
// missing directory is made on Mount, as an internal partition would be
// formatted; otherwise it must already exist.
type DirBackend struct {
	Label  string
	Path   string
	Create bool
}

func (d *DirBackend) Name() string       { return d.Label }
func (d *DirBackend) MountPoint() string { return d.Path }

func (d *DirBackend) Mount() error {
	if d.Create {
		if err := os.MkdirAll(d.Path, 0o755); err != nil {
			return err
		}
	}
	return d.Probe()
}

// Probe checks that the directory is still reachable.
func (d *DirBackend) Probe() error {
	fi, err := os.Stat(d.Path)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return &errcode.E{C: errcode.MountFailed, Op: "storage.Probe", Msg: fmt.Sprintf("%s is not a directory", d.Path)}
	}
	return nil
}
