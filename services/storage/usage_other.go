//go:build !linux || tinygo

package storage

import (
	"ftpdisplay-go/errcode"
	"ftpdisplay-go/types"
)

func (d *DirBackend) Usage() (types.StorageUsage, error) {
	return types.StorageUsage{}, errcode.Unsupported
}
