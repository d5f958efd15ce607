//go:build !rp2040 && !rp2350

package platform

import (
	"io"
	"os"
)

// Console returns stderr on hosts.
func Console() io.Writer { return os.Stderr }
