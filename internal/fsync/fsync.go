// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package fsync writes files durably: content goes to a temporary file in
// the destination directory, is flushed to stable storage, and replaces
// the destination with a rename.
package fsync

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFile calls fn with a buffered writer backed by a temporary file and,
// if fn succeeds, atomically replaces path with the result. On any error
// the temporary file is removed and path is left untouched.
func WriteFile(path string, perm os.FileMode, fn func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("fsync: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriterSize(tmp, 1<<20)
	if err = fn(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("fsync: flush: %w", err)
	}
	if err = datasync(tmp); err != nil {
		return fmt.Errorf("fsync: sync %s: %w", tmpName, err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("fsync: chmod: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("fsync: close: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("fsync: rename: %w", err)
	}
	return syncDir(dir)
}
