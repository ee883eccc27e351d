//go:build windows

package fsync

import (
	"os"

	"golang.org/x/sys/windows"
)

// datasync flushes file buffers through the handle.
func datasync(f *os.File) error {
	return windows.FlushFileBuffers(windows.Handle(f.Fd()))
}

// syncDir is a no-op: directory handles cannot be flushed on Windows.
func syncDir(string) error {
	return nil
}
