//go:build linux || freebsd

package fsync

import (
	"os"

	"golang.org/x/sys/unix"
)

// datasync flushes file data to disk.
//
// On Linux/FreeBSD, fdatasync() provides sufficient guarantees.
func datasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}

// syncDir makes a rename in dir durable.
func syncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}
