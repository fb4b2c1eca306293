package store

import (
	"bytes"
	stdgzip "compress/gzip"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ketabi/ketabi/internal/apperr"
)

// writeGzip stores payload gzip-compressed with the standard library encoder.
func writeGzip(t *testing.T, path string, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := stdgzip.NewWriter(&buf)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestStore_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data any
	}{
		{"object", map[string]any{"projectName": "My Book", "pages": []any{}}},
		{"nested", map[string]any{
			"pages": []any{
				map[string]any{"id": "p1", "title": "One", "content": map[string]any{"root": nil}},
				map[string]any{"id": "p2", "title": "Two", "tags": []any{"a", true, 3.5}},
			},
		}},
		{"array", []any{1.0, "two", false, nil}},
		{"string", "just text"},
		{"number", 42.0},
		{"null", nil},
		{"unicode", map[string]any{"title": "کتاب 日本語 <&>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{})
			path := filepath.Join(t.TempDir(), "book.ketabi")

			require.NoError(t, s.Write(path, tt.data))

			var got any
			require.NoError(t, s.ReadValue(path, &got))
			assert.Equal(t, tt.data, got)

			raw, err := s.Read(path)
			require.NoError(t, err)
			want, err := json.Marshal(tt.data)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(raw))
		})
	}
}

func TestStore_WritesGzipStream(t *testing.T) {
	s := New(Options{})
	path := filepath.Join(t.TempDir(), "book.ketabi")
	require.NoError(t, s.Write(path, map[string]any{"a": 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, data[:2])

	zr, err := stdgzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(zr).Decode(&decoded))
	assert.Equal(t, map[string]any{"a": 1.0}, decoded)
}

func TestStore_PreservesKeyOrder(t *testing.T) {
	s := New(Options{})
	path := filepath.Join(t.TempDir(), "order.ketabi")

	require.NoError(t, s.Write(path, json.RawMessage(`{"zeta": 1, "alpha": {"y": 2, "b": 3}}`)))

	raw, err := s.Read(path)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":{"y":2,"b":3}}`, string(raw))
}

func TestStore_ReadsStandardGzip(t *testing.T) {
	s := New(Options{})
	path := filepath.Join(t.TempDir(), "legacy.ketabi")
	writeGzip(t, path, []byte(`{"projectName":"Legacy","pages":[{"id":"1","title":"A"}]}`))

	var got struct {
		ProjectName string `json:"projectName"`
		Pages       []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"pages"`
	}
	require.NoError(t, s.ReadValue(path, &got))
	assert.Equal(t, "Legacy", got.ProjectName)
	require.Len(t, got.Pages, 1)
	assert.Equal(t, "A", got.Pages[0].Title)
}

func TestStore_WriteReplacesExistingFile(t *testing.T) {
	s := New(Options{})
	path := filepath.Join(t.TempDir(), "book.ketabi")

	require.NoError(t, s.Write(path, map[string]any{"version": "first"}))
	require.NoError(t, s.Write(path, map[string]any{"version": "second"}))

	var got map[string]any
	require.NoError(t, s.ReadValue(path, &got))
	assert.Equal(t, "second", got["version"])
}

func TestStore_RejectsWrongExtension(t *testing.T) {
	dir := t.TempDir()
	s := New(Options{})

	for _, name := range []string{"book.txt", "book.json", "book.ketabi.bak", "book", "book.KETABI", ".ketabi"} {
		path := filepath.Join(dir, name)

		err := s.Write(path, map[string]any{"a": 1})
		require.ErrorIs(t, err, apperr.ErrInvalidInput, name)
		_, statErr := os.Stat(path)
		assert.ErrorIs(t, statErr, fs.ErrNotExist, "write must not touch %s", name)

		// Read reports the extension before noticing the file is missing.
		_, err = s.Read(path)
		require.ErrorIs(t, err, apperr.ErrInvalidInput, name)
	}
}

func TestStore_RejectsEmptyPath(t *testing.T) {
	s := New(Options{})
	_, err := s.Read("")
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
	require.ErrorIs(t, s.Write("", 1), apperr.ErrInvalidInput)
}

func TestStore_CustomExtension(t *testing.T) {
	s := New(Options{Extension: ".book"})
	path := filepath.Join(t.TempDir(), "a.book")

	require.NoError(t, s.Write(path, []any{"ok"}))
	_, err := s.Read(path)
	require.NoError(t, err)

	_, err = s.Read(filepath.Join(t.TempDir(), "a.ketabi"))
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestStore_ReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		setup   func(t *testing.T, path string)
		wantErr error
	}{
		{
			name:    "missing file",
			setup:   func(t *testing.T, path string) {},
			wantErr: apperr.ErrIO,
		},
		{
			name: "directory",
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.Mkdir(path, 0o755))
			},
			wantErr: apperr.ErrIO,
		},
		{
			name: "above size cap",
			opts: Options{MaxSize: 16},
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{'x'}, 17), 0o644))
			},
			wantErr: apperr.ErrTooLarge,
		},
		{
			name: "plain text",
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte(`{"plain": "json"}`), 0o644))
			},
			wantErr: apperr.ErrCorruptData,
		},
		{
			name: "empty file",
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, nil, 0o644))
			},
			wantErr: apperr.ErrCorruptData,
		},
		{
			name: "truncated gzip",
			setup: func(t *testing.T, path string) {
				writeGzip(t, path, []byte(strings.Repeat(`{"k":"value"},`, 200)))
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))
			},
			wantErr: apperr.ErrCorruptData,
		},
		{
			name: "invalid json",
			setup: func(t *testing.T, path string) {
				writeGzip(t, path, []byte(`{"title": `))
			},
			wantErr: apperr.ErrMalformedContent,
		},
		{
			name: "trailing data",
			setup: func(t *testing.T, path string) {
				writeGzip(t, path, []byte(`{"a":1} {"b":2}`))
			},
			wantErr: apperr.ErrMalformedContent,
		},
		{
			name: "decompressed above limit",
			opts: Options{MaxSize: 1024, MaxDecodedSize: 2048},
			setup: func(t *testing.T, path string) {
				writeGzip(t, path, []byte(`"`+strings.Repeat("a", 4096)+`"`))
			},
			wantErr: apperr.ErrTooLarge,
		},
		{
			name: "decoded limit below size cap",
			opts: Options{MaxSize: 1000, MaxDecodedSize: 500},
			setup: func(t *testing.T, path string) {
				writeGzip(t, path, []byte(`"`+strings.Repeat("a", 600)+`"`))
			},
			wantErr: apperr.ErrTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "book.ketabi")
			tt.setup(t, path)

			_, err := New(tt.opts).Read(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantErr, apperr.KindOf(err))
		})
	}
}

func TestStore_ReadValueTypeMismatch(t *testing.T) {
	s := New(Options{})
	path := filepath.Join(t.TempDir(), "book.ketabi")
	require.NoError(t, s.Write(path, []any{"not", "an", "object"}))

	var target map[string]any
	err := s.ReadValue(path, &target)
	require.ErrorIs(t, err, apperr.ErrMalformedContent)
}

func TestStore_WriteErrors(t *testing.T) {
	t.Run("unserializable value", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "book.ketabi")
		err := New(Options{}).Write(path, map[string]any{"callback": func() {}})
		require.ErrorIs(t, err, apperr.ErrEncoding)
		assert.NoFileExists(t, path)
	})

	t.Run("invalid raw json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "book.ketabi")
		err := New(Options{}).Write(path, json.RawMessage(`{"broken":`))
		require.ErrorIs(t, err, apperr.ErrEncoding)
	})

	t.Run("missing directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "book.ketabi")
		err := New(Options{}).Write(path, 1)
		require.ErrorIs(t, err, apperr.ErrIO)
	})

	t.Run("directory target", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dir.ketabi")
		require.NoError(t, os.Mkdir(path, 0o755))
		err := New(Options{}).Write(path, 1)
		require.ErrorIs(t, err, apperr.ErrIO)
	})

	t.Run("output above size cap", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "book.ketabi")
		err := New(Options{MaxSize: 20}).Write(path, map[string]any{"k": "some text that will not fit"})
		require.ErrorIs(t, err, apperr.ErrTooLarge)
		assert.NoFileExists(t, path)
	})
}

func TestGuard(t *testing.T) {
	g := Guard{Extension: ".ketabi", MaxSize: 10}

	require.NoError(t, g.CheckPath("read", "/tmp/a.ketabi"))
	require.ErrorIs(t, g.CheckPath("read", "/tmp/a.txt"), apperr.ErrInvalidInput)
	require.ErrorIs(t, g.CheckPath("read", "/tmp/.ketabi"), apperr.ErrInvalidInput)
	require.NoError(t, g.CheckPath("read", "/tmp/x.ketabi"))
	require.NoError(t, g.CheckSize("read", "a.ketabi", 10))
	require.ErrorIs(t, g.CheckSize("read", "a.ketabi", 11), apperr.ErrTooLarge)

	open := Guard{}
	require.NoError(t, open.CheckPath("read", "anything.txt"))
	require.NoError(t, open.CheckSize("read", "anything.txt", 1<<40))
}

func TestStore_WriteThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.ketabi")
	link := filepath.Join(dir, "link.ketabi")
	s := New(Options{})

	require.NoError(t, s.Write(target, "a"))
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	require.NoError(t, s.Write(link, "b"))

	linfo, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, linfo.Mode()&os.ModeSymlink, "link must stay a symlink")

	got, err := s.Read(target)
	require.NoError(t, err)
	assert.Equal(t, `"b"`, string(got))
}

func TestStore_WriteKeepsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "private.ketabi")
	s := New(Options{})

	require.NoError(t, s.Write(path, "a"))
	require.NoError(t, os.Chmod(path, 0o600))
	require.NoError(t, s.Write(path, "b"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := s.Read(path)
	require.NoError(t, err)
	assert.Equal(t, `"b"`, string(got))
}
