// Package filex contains small filesystem helpers used by the file-backed
// store.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// TempSuffix is appended to the target path while a write is in flight.
const TempSuffix = ".tmp"

// renameFile is a test seam for os.Rename.
var renameFile = os.Rename

// EnsureDir creates dir (and parents) if missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// WriteFileAtomic replaces path with data. The bytes go to path+TempSuffix
// first, are fsynced, and only then renamed over path, so a reader sees
// either the previous file or the new one, never a partial write. The temp
// file is removed on any failure.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + TempSuffix

	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := renameFile(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}

	// Best effort: make the rename itself durable.
	if dir, err := os.Open(filepath.Dir(path)); err == nil {
		dir.Sync()
		dir.Close()
	}

	return nil
}
