// Package export turns an authored document into an EPUB 3 book.
package export

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ketabi/ketabi/internal/apperr"
)

const opExport = "export"

// Document is the input of an export: book metadata and its pages in
// reading order.
type Document struct {
	Meta  Meta   `json:"meta"`
	Pages []Page `json:"pages"`
}

// Meta holds the book metadata. Only Title is required.
type Meta struct {
	Title       string     `json:"title"`
	Publisher   string     `json:"publisher,omitempty"`
	Language    string     `json:"language,omitempty"`
	Identifier  string     `json:"identifier,omitempty"`
	Description string     `json:"description,omitempty"`
	Modified    *time.Time `json:"modified,omitempty"`
	// Date is the publication date written as dc:date, e.g. "2024" or "2024-05-01".
	Date   string `json:"date,omitempty"`
	Author string `json:"author,omitempty"`
	// AuthorRole is a MARC relator code such as "aut" or "edt"; empty means "aut".
	AuthorRole string   `json:"authorRole,omitempty"`
	Subjects   []string `json:"subjects,omitempty"`
	// Cover is the path of an image file used as the book cover.
	Cover string `json:"cover,omitempty"`
}

// Page is one chapter of the book.
type Page struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	// Content is an XHTML fragment placed into the page body as-is. It is
	// not sanitized: it must come from the application's own editor, never
	// from an untrusted source.
	Content string `json:"content"`
}

// ParseDocument decodes a document from its JSON form.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.New(apperr.ErrInvalidInput, opExport, "", "malformed document JSON", err)
	}
	return &doc, nil
}

// Validate checks the preconditions of an export.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Meta.Title) == "" {
		return apperr.New(apperr.ErrValidation, opExport, "", "title required", nil)
	}
	if len(d.Pages) == 0 {
		return apperr.New(apperr.ErrValidation, opExport, "", "pages required", nil)
	}
	return nil
}
