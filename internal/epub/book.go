package epub

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	mimetype = "application/epub+zip"

	contentDir  = "OEBPS"
	textDir     = "text"
	imageDir    = "images"
	opfFile     = "content.opf"
	navFile     = "nav.xhtml"
	ncxFile     = "toc.ncx"
	coverFile   = "cover.xhtml"
	defaultLang = "en"

	defaultAuthorRole = "aut"

	// ModifiedLayout is the dcterms:modified form required by EPUB 3.
	ModifiedLayout = "2006-01-02T15:04:05Z"
)

var (
	ErrMissingTitle      = errors.New("book title is required")
	ErrEmptyFilename     = errors.New("content filename is required")
	ErrInvalidFilename   = errors.New("content filename must be a plain .xhtml name")
	ErrDuplicateFilename = errors.New("content filename already used")
	ErrMissingPartTitle  = errors.New("content title is required")
	ErrInvalidCover      = errors.New("cover must be a non-empty raster image")
	ErrNoContent         = errors.New("book has no content")
)

// ReferenceType is the semantic role of a content part.
type ReferenceType string

const (
	ReferenceCover     ReferenceType = "cover"
	ReferenceTitlePage ReferenceType = "title-page"
	ReferenceTOC       ReferenceType = "toc"
	ReferencePreface   ReferenceType = "preface"
	ReferenceText      ReferenceType = "text"
	ReferenceColophon  ReferenceType = "colophon"
)

// landmark maps a reference type to its EPUB 3 structural semantics.
func (r ReferenceType) landmark() string {
	switch r {
	case ReferenceTitlePage:
		return "titlepage"
	case ReferenceText:
		return "bodymatter"
	case "":
		return "bodymatter"
	default:
		return string(r)
	}
}

// Content is one XHTML part of the book.
type Content struct {
	// Filename is the name inside the text directory, e.g. "01-intro.xhtml".
	Filename string
	// Title is shown in the table of contents.
	Title string
	// Type is the semantic role; empty means ReferenceText.
	Type ReferenceType
	// Body is the complete XHTML document.
	Body []byte
}

// Image is a binary resource stored in the images directory.
type Image struct {
	Filename  string
	MediaType string
	Data      []byte
}

// Book accumulates metadata and content and serializes them as an EPUB 3
// container with an EPUB 2 NCX for older readers.
type Book struct {
	title       string
	identifier  string
	language    string
	publisher   string
	author      string
	authorRole  string
	date        string
	description string
	subjects    []string
	modified    time.Time
	generator   string

	cover     *Image
	contents  []Content
	filenames map[string]struct{}
	inlineTOC bool
	tocTitle  string

	now   func() time.Time
	newID func() string
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{
		filenames: make(map[string]struct{}),
		tocTitle:  "Table of Contents",
		now:       time.Now,
		newID:     func() string { return "urn:uuid:" + uuid.NewString() },
	}
}

func (b *Book) SetTitle(title string)             { b.title = title }
func (b *Book) SetIdentifier(identifier string)   { b.identifier = identifier }
func (b *Book) SetLanguage(lang string)           { b.language = lang }
func (b *Book) SetPublisher(publisher string)     { b.publisher = publisher }
func (b *Book) SetAuthor(author string)           { b.author = author }
func (b *Book) SetDate(date string)               { b.date = date }
func (b *Book) SetDescription(description string) { b.description = description }
func (b *Book) SetGenerator(generator string)     { b.generator = generator }
func (b *Book) SetTOCTitle(title string)          { b.tocTitle = title }

// SetAuthorRole sets the MARC relator code of the author, "aut" when unset.
func (b *Book) SetAuthorRole(role string) { b.authorRole = role }

// AddSubject appends a dc:subject entry.
func (b *Book) AddSubject(subject string) {
	b.subjects = append(b.subjects, subject)
}

// SetModified sets dcterms:modified. The time is stored in UTC at second precision.
func (b *Book) SetModified(t time.Time) {
	b.modified = t.UTC().Truncate(time.Second)
}

// InlineTOC places the navigation document in the reading order ahead of
// the first content part.
func (b *Book) InlineTOC() {
	b.inlineTOC = true
}

// SetCover registers a cover image and a cover page showing it.
func (b *Book) SetCover(img Image) error {
	if len(img.Data) == 0 || !strings.HasPrefix(img.MediaType, "image/") || img.MediaType == "image/svg+xml" {
		return ErrInvalidCover
	}
	if img.Filename == "" {
		img.Filename = "cover" + extensionFor(img.MediaType)
	}
	if !isPlainName(img.Filename) {
		return fmt.Errorf("%w: %q", ErrInvalidCover, img.Filename)
	}
	b.cover = &img
	return nil
}

// AddContent appends a content part. Parts appear in the spine and in the
// table of contents in the order they are added.
func (b *Book) AddContent(c Content) error {
	if c.Filename == "" {
		return ErrEmptyFilename
	}
	if !isPlainName(c.Filename) || !strings.HasSuffix(c.Filename, ".xhtml") {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, c.Filename)
	}
	if _, ok := b.filenames[c.Filename]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateFilename, c.Filename)
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: %q", ErrMissingPartTitle, c.Filename)
	}
	if c.Type == "" {
		c.Type = ReferenceText
	}

	b.filenames[c.Filename] = struct{}{}
	b.contents = append(b.contents, c)
	return nil
}

// Contents returns the parts added so far.
func (b *Book) Contents() []Content {
	return b.contents
}

// WriteTo serializes the book as an EPUB container.
func (b *Book) WriteTo(w io.Writer) (int64, error) {
	if strings.TrimSpace(b.title) == "" {
		return 0, ErrMissingTitle
	}
	if len(b.contents) == 0 {
		return 0, ErrNoContent
	}

	// Fill in what EPUB readers require but the caller left unset. The
	// defaults live in a copy so every write generates its own.
	out := *b
	if out.identifier == "" {
		out.identifier = b.newID()
	}
	if out.language == "" {
		out.language = defaultLang
	}
	if out.modified.IsZero() {
		out.SetModified(b.now())
	}

	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	// mimetype must be the first entry and stored uncompressed.
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return cw.n, fmt.Errorf("failed to write mimetype: %w", err)
	}
	if _, err := io.WriteString(mw, mimetype); err != nil {
		return cw.n, fmt.Errorf("failed to write mimetype: %w", err)
	}

	opf, err := out.packageDocument()
	if err != nil {
		return cw.n, err
	}
	ncx, err := out.ncxDocument()
	if err != nil {
		return cw.n, err
	}

	entries := []archiveEntry{
		{"META-INF/container.xml", []byte(containerXML)},
		{path.Join(contentDir, opfFile), opf},
		{path.Join(contentDir, navFile), out.navDocument()},
		{path.Join(contentDir, ncxFile), ncx},
	}
	if out.cover != nil {
		entries = append(entries,
			archiveEntry{path.Join(contentDir, imageDir, out.cover.Filename), out.cover.Data},
			archiveEntry{path.Join(contentDir, coverFile), out.coverDocument()},
		)
	}
	for _, c := range out.contents {
		entries = append(entries, archiveEntry{path.Join(contentDir, textDir, c.Filename), c.Body})
	}

	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: out.modified,
		})
		if err != nil {
			return cw.n, fmt.Errorf("failed to add %s: %w", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return cw.n, fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("failed to finish archive: %w", err)
	}
	return cw.n, nil
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

type archiveEntry struct {
	name string
	data []byte
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func isPlainName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`) &&
		name != navFile && name != coverFile
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
