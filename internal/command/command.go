// Package command exposes the operations offered to the host application.
// Each returns a plain error whose text is a single displayable line.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ketabi/ketabi/internal/apperr"
	"github.com/ketabi/ketabi/internal/export"
	"github.com/ketabi/ketabi/internal/store"
)

// Commands bundles the collaborators the operations run against.
type Commands struct {
	Store    *store.Store
	Exporter *export.Exporter
	Logger   *slog.Logger
}

// New returns Commands using s, e and logger. A nil logger discards output.
func New(s *store.Store, e *export.Exporter, logger *slog.Logger) *Commands {
	return &Commands{Store: s, Exporter: e, Logger: logger}
}

// ReadFile loads a document file and returns its JSON content.
func (c *Commands) ReadFile(path string) (json.RawMessage, error) {
	return run(c, "read", path, func() (json.RawMessage, error) {
		return c.Store.Read(path)
	})
}

// Sync writes value to the document file at path, replacing it.
func (c *Commands) Sync(value any, path string) error {
	_, err := run(c, "sync", path, func() (struct{}, error) {
		return struct{}{}, c.Store.Write(path, value)
	})
	return err
}

// GenerateEpub exports the document given as JSON to outputPath and returns
// outputPath.
func (c *Commands) GenerateEpub(documentJSON, outputPath string) (string, error) {
	return run(c, "export", outputPath, func() (string, error) {
		doc, err := export.ParseDocument([]byte(documentJSON))
		if err != nil {
			return "", err
		}
		return c.Exporter.Export(doc, outputPath)
	})
}

func (c *Commands) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// run executes fn, turning a panic into an error, logs the outcome and
// flattens any error to its message.
func run[T any](c *Commands, op, path string, fn func() (T, error)) (result T, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = fmt.Errorf("%s: internal error: %v", op, r)
		}

		attrs := []any{"op", op, "path", path, "duration", time.Since(start)}
		if err != nil {
			if kind := apperr.KindOf(err); kind != nil {
				attrs = append(attrs, "kind", kind.Error())
			}
			attrs = append(attrs, "error", err)
			c.logger().Warn("command failed", attrs...)
			err = errors.New(apperr.Message(err))
			return
		}
		c.logger().Info("command completed", attrs...)
	}()

	return fn()
}
