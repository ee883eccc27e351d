//go:build darwin

package fsync

import (
	"os"

	"golang.org/x/sys/unix"
)

// datasync flushes file data to disk.
//
// On macOS, fsync() only reaches the drive cache; F_FULLFSYNC forces the
// data to permanent storage.
func datasync(f *os.File) error {
	_, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0)
	return err
}

// syncDir makes a rename in dir durable.
func syncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}
