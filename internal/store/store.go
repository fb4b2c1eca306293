// Package store reads and writes .ketabi document files: a gzip stream
// wrapping compact UTF-8 JSON.
package store

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/ketabi/ketabi/internal/apperr"
	"github.com/ketabi/ketabi/internal/fsutil"
)

const (
	opRead = "read"
	opSync = "sync"
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	Extension        string
	MaxSize          int64
	MaxDecodedSize   int64
	CompressionLevel int
	Logger           *slog.Logger
}

// Store reads and writes document files through one shared Guard.
type Store struct {
	guard            Guard
	maxDecodedSize   int64
	compressionLevel int
	logger           *slog.Logger
}

// New creates a Store. The zero Options give the .ketabi extension, a
// 10 MiB size cap and the default gzip level.
func New(opts Options) *Store {
	ext := opts.Extension
	if ext == "" {
		ext = ".ketabi"
	}
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	maxDecoded := opts.MaxDecodedSize
	if maxDecoded <= 0 {
		maxDecoded = 8 * maxSize
	}
	level := opts.CompressionLevel
	if level < gzip.DefaultCompression || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		guard:            Guard{Extension: ext, MaxSize: maxSize},
		maxDecodedSize:   maxDecoded,
		compressionLevel: level,
		logger:           logger,
	}
}

// Guard returns the checks this store applies to every path.
func (s *Store) Guard() Guard {
	return s.guard
}

// Read loads the document file at path and returns its JSON payload.
// The payload is returned byte-for-byte as stored, so object key order is kept.
func (s *Store) Read(path string) (json.RawMessage, error) {
	if err := s.guard.CheckPath(opRead, path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, apperr.New(apperr.ErrIO, opRead, path, "failed to open file", err)
	}
	if info.IsDir() {
		return nil, apperr.New(apperr.ErrIO, opRead, path, "failed to open file", fsutil.ErrIsDir)
	}
	if err := s.guard.CheckSize(opRead, path, info.Size()); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.New(apperr.ErrIO, opRead, path, "failed to open file", err)
	}
	defer f.Close()

	// Guard against the file growing between Stat and Open.
	payload, err := decompress(io.LimitReader(f, s.guard.MaxSize+1), s.maxDecodedSize)
	if err != nil {
		if errors.Is(err, errDecodedTooLarge) {
			return nil, apperr.New(apperr.ErrTooLarge, opRead, path, "decompressed content is too large", err)
		}
		return nil, apperr.New(apperr.ErrCorruptData, opRead, path, "failed to decompress file", err)
	}

	var raw json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, apperr.New(apperr.ErrMalformedContent, opRead, path, "failed to parse JSON", err)
	}

	s.logger.Debug("document read", "path", path, "size", info.Size(), "payload", len(payload))
	return raw, nil
}

// ReadValue reads the document file at path and decodes it into v.
func (s *Store) ReadValue(path string, v any) error {
	raw, err := s.Read(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.New(apperr.ErrMalformedContent, opRead, path, "failed to decode JSON", err)
	}
	return nil
}

// Write serializes data as JSON, compresses it and replaces the file at path.
// A json.RawMessage is validated and compacted rather than re-encoded.
// The compressed result must respect the same size cap Read enforces.
func (s *Store) Write(path string, data any) error {
	if err := s.guard.CheckPath(opSync, path); err != nil {
		return err
	}
	if fsutil.IsDir(path) {
		return apperr.New(apperr.ErrIO, opSync, path, "failed to create file", fsutil.ErrIsDir)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return apperr.New(apperr.ErrEncoding, opSync, path, "failed to serialize JSON", err)
	}

	compressed, err := compress(payload, s.compressionLevel)
	if err != nil {
		return apperr.New(apperr.ErrCompression, opSync, path, "compression failed", err)
	}
	if err := s.guard.CheckSize(opSync, path, int64(len(compressed))); err != nil {
		return err
	}

	err = fsutil.WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(compressed)
		return err
	})
	if err != nil {
		return apperr.New(apperr.ErrIO, opSync, path, "failed to write file", err)
	}

	s.logger.Debug("document written", "path", path, "payload", len(payload), "size", len(compressed))
	return nil
}
