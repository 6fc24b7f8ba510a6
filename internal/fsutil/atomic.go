// Package fsutil holds file helpers shared by the config and report writers.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// WriteFunc renders file contents into w.
type WriteFunc func(w io.Writer) error

// ReplaceFile writes the output of fn to path. Regular files are replaced
// through a synced temp file in the same directory and a rename, so readers
// see either the old contents or the new ones. Existing symlinks, devices and
// pipes are written through in place instead, as is a regular file whose
// directory does not allow creating the temp file.
func ReplaceFile(path, pattern string, perm fs.FileMode, fn WriteFunc) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path must not be empty")
	}

	info, err := os.Lstat(path)
	exists := err == nil
	if exists && !info.Mode().IsRegular() {
		return writeInPlace(path, perm, fn)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, pattern)
	if err != nil {
		if exists && errors.Is(err, fs.ErrPermission) {
			return writeInPlace(path, perm, fn)
		}
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := fn(tmpFile); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	tmpPath = ""

	return nil
}

// writeInPlace truncates and rewrites path, following symlinks. A dangling
// symlink gets its target created with perm.
func writeInPlace(path string, perm fs.FileMode, fn WriteFunc) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
