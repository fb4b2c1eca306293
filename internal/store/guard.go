package store

import (
	"fmt"
	"path/filepath"

	"github.com/ketabi/ketabi/internal/apperr"
)

// Guard holds the input checks shared by Read and Write, so the two sides
// of the format always agree on what a valid document file is.
type Guard struct {
	// Extension is the required file extension including the dot.
	// An empty Extension accepts any path.
	Extension string
	// MaxSize is the largest accepted file size in bytes. Zero disables the check.
	MaxSize int64
}

// CheckPath rejects paths that do not carry the required extension.
// It never touches the filesystem.
func (g Guard) CheckPath(op, path string) error {
	if path == "" {
		return apperr.New(apperr.ErrInvalidInput, op, "", "path is empty", nil)
	}
	if g.Extension == "" {
		return nil
	}
	// A bare ".ketabi" is a dotfile with no extension.
	if filepath.Ext(path) != g.Extension || len(filepath.Base(path)) <= len(g.Extension) {
		msg := fmt.Sprintf("invalid file type, only %s files are allowed", g.Extension)
		return apperr.New(apperr.ErrInvalidInput, op, path, msg, nil)
	}
	return nil
}

// CheckSize rejects sizes above MaxSize.
func (g Guard) CheckSize(op, path string, size int64) error {
	if g.MaxSize > 0 && size > g.MaxSize {
		msg := fmt.Sprintf("file is %d bytes, limit is %d", size, g.MaxSize)
		return apperr.New(apperr.ErrTooLarge, op, path, msg, nil)
	}
	return nil
}
