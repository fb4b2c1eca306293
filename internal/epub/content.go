package epub

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a parsed XHTML content document.
type Page struct {
	Path      string            // archive path
	Title     string            // text of <title>
	Body      string            // inner HTML of <body>
	Document  *goquery.Document // parsed document
	CSSLinks  []string          // referenced stylesheets, archive paths
	ImageRefs []string          // referenced images, archive paths
}

// LoadContent parses an XHTML content document stored at archive path p.
func LoadContent(p string, content []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	body, err := doc.Find("body").First().Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render body of %s: %w", p, err)
	}

	page := &Page{
		Path:      p,
		Title:     strings.TrimSpace(doc.Find("head title").First().Text()),
		Body:      body,
		Document:  doc,
		CSSLinks:  []string{},
		ImageRefs: []string{},
	}

	baseDir := path.Dir(p)
	doc.Find("link[rel='stylesheet']").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			page.CSSLinks = append(page.CSSLinks, resolvePath(baseDir, href))
		}
	})
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			page.ImageRefs = append(page.ImageRefs, resolvePath(baseDir, src))
		}
	})

	return page, nil
}

// resolvePath resolves a document-relative reference to an archive path,
// e.g. "../images/photo.jpg" from "OEBPS/text" gives "OEBPS/images/photo.jpg".
func resolvePath(baseDir, rel string) string {
	return path.Clean(path.Join(baseDir, rel))
}
