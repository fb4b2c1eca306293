package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

var (
	ErrInvalidMimetype    = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrMimetypeCompressed = errors.New("mimetype must not be compressed")
	ErrMimetypeNotFirst   = errors.New("mimetype must be the first archive entry")
	ErrMimetypeNotFound   = errors.New("mimetype file not found")
	ErrContainerNotFound  = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound    = errors.New("OPF path not found in container.xml")
	ErrNavNotFound        = errors.New("no navigation document or NCX in package")
)

// Reader gives access to the entries of an EPUB container.
type Reader struct {
	zr      *zip.Reader
	closer  io.Closer
	files   map[string]*zip.File
	names   []string
	opfPath string
}

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// Open opens the EPUB file at path and validates its container structure.
func Open(name string) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}

	r, err := NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads an EPUB container from ra.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}

	r := &Reader{
		zr:    zr,
		files: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		name := normalizePath(f.Name)
		r.files[name] = f
		r.names = append(r.names, name)
	}

	if err := r.validateMimetype(); err != nil {
		return nil, err
	}
	if err := r.parseContainer(); err != nil {
		return nil, err
	}
	return r, nil
}

// Close releases the underlying file when the reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// OPFPath returns the archive path of the package document.
func (r *Reader) OPFPath() string {
	return r.opfPath
}

// Names lists the archive entries in stored order.
func (r *Reader) Names() []string {
	return r.names
}

// ReadFile reads the contents of a file from the EPUB
func (r *Reader) ReadFile(name string) ([]byte, error) {
	name = normalizePath(name)
	f, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", name, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// Package reads and parses the package document.
func (r *Reader) Package() (*OPF, error) {
	data, err := r.ReadFile(r.opfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OPF: %w", err)
	}
	return ParseOPF(data, path.Dir(r.opfPath))
}

// Navigation returns the table of contents, preferring the EPUB 3
// navigation document over the NCX.
func (r *Reader) Navigation(opf *OPF) ([]NavEntry, error) {
	switch {
	case opf.NavPath != "":
		data, err := r.ReadFile(opf.NavPath)
		if err != nil {
			return nil, err
		}
		return ParseNav(data, opf.NavPath)
	case opf.NCXPath != "":
		data, err := r.ReadFile(opf.NCXPath)
		if err != nil {
			return nil, err
		}
		return ParseNCX(data, opf.NCXPath)
	default:
		return nil, ErrNavNotFound
	}
}

// validateMimetype checks that the mimetype entry comes first, is stored
// uncompressed and holds the EPUB media type.
func (r *Reader) validateMimetype() error {
	f, ok := r.files["mimetype"]
	if !ok {
		return ErrMimetypeNotFound
	}
	if r.names[0] != "mimetype" {
		return ErrMimetypeNotFirst
	}
	if f.Method != zip.Store {
		return ErrMimetypeCompressed
	}

	content, err := r.ReadFile("mimetype")
	if err != nil {
		return fmt.Errorf("failed to read mimetype: %w", err)
	}
	if string(content) != mimetype {
		return ErrInvalidMimetype
	}
	return nil
}

// parseContainer parses container.xml to extract OPF path
func (r *Reader) parseContainer() error {
	content, err := r.ReadFile("META-INF/container.xml")
	if err != nil {
		return ErrContainerNotFound
	}

	var c container
	if err := xml.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("failed to parse container.xml: %w", err)
	}

	for _, rf := range c.Rootfiles.Rootfile {
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			r.opfPath = normalizePath(rf.FullPath)
			return nil
		}
	}
	if len(c.Rootfiles.Rootfile) > 0 {
		r.opfPath = normalizePath(c.Rootfiles.Rootfile[0].FullPath)
		return nil
	}

	return ErrOPFPathNotFound
}

// normalizePath normalizes file paths (removes ./ prefix)
func normalizePath(name string) string {
	return strings.TrimPrefix(name, "./")
}
