// Package fsutil holds file helpers shared by the store and the exporter.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultFileMode is applied to files created by WriteAtomic.
const DefaultFileMode os.FileMode = 0o644

// WriteAtomic writes the output of fill to a temporary file next to path and
// renames it over path once fill and the flush to disk succeed. On failure the
// temporary file is removed and any existing file at path is left untouched.
//
// A symlink at path is followed: the file it points to is replaced and the
// link stays. An existing file keeps its permission bits.
func WriteAtomic(path string, fill func(w io.Writer) error) (err error) {
	target, perm, err := resolveTarget(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	return nil
}

// resolveTarget returns the file WriteAtomic replaces for path and the
// permissions the new file gets.
func resolveTarget(path string) (string, os.FileMode, error) {
	target := path
	linfo, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return path, DefaultFileMode, nil
	case err != nil:
		return "", 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if linfo.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return "", 0, fmt.Errorf("failed to resolve %s: %w", path, err)
			}
			// Dangling link: create the file it names.
			dest, err := os.Readlink(path)
			if err != nil {
				return "", 0, fmt.Errorf("failed to resolve %s: %w", path, err)
			}
			if !filepath.IsAbs(dest) {
				dest = filepath.Join(filepath.Dir(path), dest)
			}
			return dest, DefaultFileMode, nil
		}
		target = resolved
	}

	info, err := os.Stat(target)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat %s: %w", target, err)
	}
	if info.IsDir() {
		return target, DefaultFileMode, nil
	}
	return target, info.Mode().Perm(), nil
}

// IsDir reports whether path names an existing directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ErrIsDir is returned when a file operation targets a directory.
var ErrIsDir = errors.New("path is a directory")
