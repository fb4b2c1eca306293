package export

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ketabi/ketabi/internal/apperr"
	"github.com/ketabi/ketabi/internal/epub"
	"github.com/ketabi/ketabi/internal/fsutil"
)

// Options configures an Exporter.
type Options struct {
	// Generator is stamped into the book metadata; empty leaves it out.
	Generator string

	CoverMaxWidth  int
	CoverMaxHeight int
	CoverQuality   int

	Logger *slog.Logger
	// Now supplies the modification time when the document has none.
	Now func() time.Time
}

// Exporter writes documents as EPUB files.
type Exporter struct {
	generator string
	cover     coverOptimizer
	logger    *slog.Logger
	now       func() time.Time
	// writeBook serializes the finished book.
	writeBook func(b *epub.Book, w io.Writer) (int64, error)
}

// New creates an Exporter.
func New(opts Options) *Exporter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Exporter{
		generator: opts.Generator,
		cover:     newCoverOptimizer(opts),
		logger:    logger,
		now:       now,
		writeBook: (*epub.Book).WriteTo,
	}
}

// Export validates doc, builds the book and writes it to outputPath,
// replacing any existing file only once the book is complete. It returns
// outputPath.
func (e *Exporter) Export(doc *Document, outputPath string) (string, error) {
	if doc == nil {
		return "", apperr.New(apperr.ErrInvalidInput, opExport, outputPath, "document required", nil)
	}
	if err := doc.Validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(outputPath) == "" {
		return "", apperr.New(apperr.ErrInvalidInput, opExport, "", "output path required", nil)
	}

	book, err := e.build(doc)
	if err != nil {
		return "", err
	}

	err = fsutil.WriteAtomic(outputPath, func(w io.Writer) error {
		return e.pack(book, outputPath, w)
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return "", err
		}
		return "", apperr.New(apperr.ErrIO, opExport, outputPath, "failed to write EPUB", err)
	}

	e.logger.Debug("epub written", "path", outputPath, "pages", len(doc.Pages))
	return outputPath, nil
}

func (e *Exporter) build(doc *Document) (*epub.Book, error) {
	meta := doc.Meta
	book := epub.NewBook()

	book.SetTitle(strings.TrimSpace(meta.Title))
	if v := strings.TrimSpace(meta.Identifier); v != "" {
		book.SetIdentifier(v)
	}
	if v := strings.TrimSpace(meta.Language); v != "" {
		book.SetLanguage(v)
	}
	if v := strings.TrimSpace(meta.Publisher); v != "" {
		book.SetPublisher(v)
	}
	if v := strings.TrimSpace(meta.Author); v != "" {
		book.SetAuthor(v)
		book.SetAuthorRole(strings.TrimSpace(meta.AuthorRole))
	}
	if v := strings.TrimSpace(meta.Date); v != "" {
		book.SetDate(v)
	}
	if v := strings.TrimSpace(meta.Description); v != "" {
		book.SetDescription(v)
	}
	for _, s := range meta.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			book.AddSubject(s)
		}
	}
	if meta.Modified != nil {
		book.SetModified(*meta.Modified)
	} else {
		book.SetModified(e.now())
	}
	if e.generator != "" {
		book.SetGenerator(e.generator)
	}

	if meta.Cover != "" {
		img, err := e.cover.Load(meta.Cover)
		if err != nil {
			return nil, apperr.New(apperr.ErrIO, opExport, meta.Cover, "failed to load cover", err)
		}
		if err := book.SetCover(img); err != nil {
			return nil, apperr.New(apperr.ErrExport, opExport, meta.Cover, "failed to add cover", err)
		}
	}

	for i, page := range doc.Pages {
		n := i + 1
		title := PageTitle(page.Title, n)
		content := epub.Content{
			Filename: PageFilename(page.Title, n),
			Title:    title,
			Type:     epub.ReferenceText,
			Body:     []byte(WrapXHTML(title, page.Content)),
		}
		if err := book.AddContent(content); err != nil {
			return nil, apperr.New(apperr.ErrExport, opExport, "", "failed to add page "+content.Filename, err)
		}
		e.logger.Debug("page added", "n", n, "id", page.ID, "file", content.Filename)
	}

	book.InlineTOC()
	return book, nil
}

// pack serializes book into w. Failures of w itself are I/O errors; anything
// else came from packaging.
func (e *Exporter) pack(book *epub.Book, outputPath string, w io.Writer) error {
	dest := &errWriter{w: w}
	if _, err := e.writeBook(book, dest); err != nil {
		if dest.err != nil {
			return apperr.New(apperr.ErrIO, opExport, outputPath, "failed to write EPUB", err)
		}
		return apperr.New(apperr.ErrExport, opExport, outputPath, "failed to generate EPUB", err)
	}
	return nil
}

// errWriter records the first error returned by the destination so it can be
// told apart from packaging failures.
type errWriter struct {
	w   io.Writer
	err error
}

func (w *errWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if err != nil && w.err == nil {
		w.err = err
	}
	return n, err
}
