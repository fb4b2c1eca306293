package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

var (
	errNotGzip         = errors.New("missing gzip header")
	errDecodedTooLarge = errors.New("decompressed payload exceeds limit")
	gzipMagic          = []byte{0x1f, 0x8b}
)

// compress gzips payload at the given level.
func compress(payload []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(payload); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompress reads a gzip stream from r. The two magic bytes are checked
// first so plain text is reported as such instead of as a generic gzip error.
// At most limit decompressed bytes are accepted when limit is positive.
func decompress(r io.Reader, limit int64) ([]byte, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil || !bytes.Equal(head, gzipMagic) {
		return nil, errNotGzip
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("invalid gzip header: %w", err)
	}
	defer zr.Close()

	var src io.Reader = zr
	if limit > 0 {
		src = io.LimitReader(zr, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, errDecodedTooLarge
	}
	return data, nil
}
