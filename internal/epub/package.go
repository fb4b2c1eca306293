package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"strconv"
	"strings"
)

const (
	nsOPF = "http://www.idpf.org/2007/opf"
	nsDC  = "http://purl.org/dc/elements/1.1/"
	nsNCX = "http://www.daisy.org/z3986/2005/ncx/"

	uniqueIDName = "pub-id"
	navItemID    = "nav"
	ncxItemID    = "ncx"
	coverImageID = "cover-image"
	coverPageID  = "cover"
)

// The write-side OPF structures use literal "dc:" element names so the
// output carries the conventional prefixes. ParseOPF reads them back through
// the namespace-aware structures in opf.go.

type pkgDocument struct {
	XMLName  xml.Name      `xml:"package"`
	Xmlns    string        `xml:"xmlns,attr"`
	Version  string        `xml:"version,attr"`
	UniqueID string        `xml:"unique-identifier,attr"`
	Lang     string        `xml:"xml:lang,attr,omitempty"`
	Metadata pkgMetadata   `xml:"metadata"`
	Manifest []pkgItem     `xml:"manifest>item"`
	Spine    pkgSpine      `xml:"spine"`
	Guide    []pkgGuideRef `xml:"guide>reference,omitempty"`
}

type pkgMetadata struct {
	XmlnsDC     string        `xml:"xmlns:dc,attr"`
	Identifier  pkgIdentifier `xml:"dc:identifier"`
	Title       string        `xml:"dc:title"`
	Language    string        `xml:"dc:language"`
	Creator     *pkgCreator   `xml:"dc:creator,omitempty"`
	Publisher   string        `xml:"dc:publisher,omitempty"`
	Date        string        `xml:"dc:date,omitempty"`
	Description string        `xml:"dc:description,omitempty"`
	Subjects    []string      `xml:"dc:subject,omitempty"`
	Meta        []pkgMeta     `xml:"meta"`
}

type pkgIdentifier struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

type pkgCreator struct {
	ID   string `xml:"id,attr"`
	Name string `xml:",chardata"`
}

type pkgMeta struct {
	Name     string `xml:"name,attr,omitempty"`
	Content  string `xml:"content,attr,omitempty"`
	Property string `xml:"property,attr,omitempty"`
	Refines  string `xml:"refines,attr,omitempty"`
	Scheme   string `xml:"scheme,attr,omitempty"`
	Value    string `xml:",chardata"`
}

type pkgItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr,omitempty"`
}

type pkgSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []pkgItemRef `xml:"itemref"`
}

type pkgItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr,omitempty"`
}

type pkgGuideRef struct {
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
	Href  string `xml:"href,attr"`
}

// partID is the manifest id of the i-th content part.
func partID(i int) string {
	return "part-" + strconv.Itoa(i+1)
}

// partHref is the path of a content part relative to the OPF.
func partHref(c Content) string {
	return path.Join(textDir, c.Filename)
}

func (b *Book) packageDocument() ([]byte, error) {
	doc := pkgDocument{
		Xmlns:    nsOPF,
		Version:  "3.0",
		UniqueID: uniqueIDName,
		Lang:     b.language,
		Metadata: pkgMetadata{
			XmlnsDC:     nsDC,
			Identifier:  pkgIdentifier{ID: uniqueIDName, Value: b.identifier},
			Title:       b.title,
			Language:    b.language,
			Publisher:   b.publisher,
			Date:        b.date,
			Description: b.description,
			Subjects:    b.subjects,
		},
		Spine: pkgSpine{Toc: ncxItemID},
	}

	meta := &doc.Metadata
	if b.author != "" {
		role := b.authorRole
		if role == "" {
			role = defaultAuthorRole
		}
		meta.Creator = &pkgCreator{ID: "creator", Name: b.author}
		meta.Meta = append(meta.Meta, pkgMeta{
			Refines:  "#creator",
			Property: "role",
			Scheme:   "marc:relators",
			Value:    role,
		})
	}
	meta.Meta = append(meta.Meta, pkgMeta{Property: "dcterms:modified", Value: b.modified.Format(ModifiedLayout)})
	if b.generator != "" {
		meta.Meta = append(meta.Meta, pkgMeta{Name: "generator", Content: b.generator})
	}

	doc.Manifest = append(doc.Manifest,
		pkgItem{ID: navItemID, Href: navFile, MediaType: "application/xhtml+xml", Properties: "nav"},
		pkgItem{ID: ncxItemID, Href: ncxFile, MediaType: "application/x-dtbncx+xml"},
	)

	if b.cover != nil {
		meta.Meta = append(meta.Meta, pkgMeta{Name: "cover", Content: coverImageID})
		doc.Manifest = append(doc.Manifest,
			pkgItem{
				ID:         coverImageID,
				Href:       path.Join(imageDir, b.cover.Filename),
				MediaType:  b.cover.MediaType,
				Properties: "cover-image",
			},
			pkgItem{ID: coverPageID, Href: coverFile, MediaType: "application/xhtml+xml"},
		)
		doc.Spine.ItemRefs = append(doc.Spine.ItemRefs, pkgItemRef{IDRef: coverPageID})
		doc.Guide = append(doc.Guide, pkgGuideRef{Type: string(ReferenceCover), Title: "Cover", Href: coverFile})
	}

	if b.inlineTOC {
		doc.Spine.ItemRefs = append(doc.Spine.ItemRefs, pkgItemRef{IDRef: navItemID})
		doc.Guide = append(doc.Guide, pkgGuideRef{Type: string(ReferenceTOC), Title: b.tocTitle, Href: navFile})
	}

	guided := make(map[ReferenceType]bool)
	for i, c := range b.contents {
		doc.Manifest = append(doc.Manifest, pkgItem{
			ID:        partID(i),
			Href:      partHref(c),
			MediaType: "application/xhtml+xml",
		})
		doc.Spine.ItemRefs = append(doc.Spine.ItemRefs, pkgItemRef{IDRef: partID(i)})

		// The guide names the first part of each role.
		if !guided[c.Type] && !(c.Type == ReferenceCover && b.cover != nil) {
			guided[c.Type] = true
			doc.Guide = append(doc.Guide, pkgGuideRef{Type: string(c.Type), Title: c.Title, Href: partHref(c)})
		}
	}

	return marshalDocument(doc)
}

type ncxOutput struct {
	XMLName  xml.Name    `xml:"ncx"`
	Xmlns    string      `xml:"xmlns,attr"`
	Version  string      `xml:"version,attr"`
	Head     []ncxMeta   `xml:"head>meta"`
	DocTitle string      `xml:"docTitle>text"`
	NavMap   []ncxNavOut `xml:"navMap>navPoint"`
}

type ncxMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type ncxNavOut struct {
	ID        string `xml:"id,attr"`
	PlayOrder int    `xml:"playOrder,attr"`
	Label     string `xml:"navLabel>text"`
	Content   struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
}

func (b *Book) ncxDocument() ([]byte, error) {
	doc := ncxOutput{
		Xmlns:   nsNCX,
		Version: "2005-1",
		Head: []ncxMeta{
			{Name: "dtb:uid", Content: b.identifier},
			{Name: "dtb:depth", Content: "1"},
			{Name: "dtb:totalPageCount", Content: "0"},
			{Name: "dtb:maxPageNumber", Content: "0"},
		},
		DocTitle: b.title,
	}
	for i, c := range b.contents {
		p := ncxNavOut{
			ID:        "navpoint-" + strconv.Itoa(i+1),
			PlayOrder: i + 1,
			Label:     c.Title,
		}
		p.Content.Src = partHref(c)
		doc.NavMap = append(doc.NavMap, p)
	}
	return marshalDocument(doc)
}

func marshalDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// navDocument renders the EPUB 3 navigation document: the table of contents
// and a landmarks list pointing at the first part of each role.
func (b *Book) navDocument() []byte {
	var sb strings.Builder
	writeXHTMLHead(&sb, b.language, b.tocTitle, "")

	sb.WriteString("<body>\n")
	sb.WriteString("  <nav epub:type=\"toc\" id=\"toc\">\n")
	sb.WriteString("    <h1>" + escapeText(b.tocTitle) + "</h1>\n")
	sb.WriteString("    <ol>\n")
	for _, c := range b.contents {
		fmt.Fprintf(&sb, "      <li><a href=\"%s\">%s</a></li>\n", escapeText(partHref(c)), escapeText(c.Title))
	}
	sb.WriteString("    </ol>\n")
	sb.WriteString("  </nav>\n")

	sb.WriteString("  <nav epub:type=\"landmarks\" id=\"landmarks\" hidden=\"hidden\">\n")
	sb.WriteString("    <h2>Landmarks</h2>\n")
	sb.WriteString("    <ol>\n")
	if b.cover != nil {
		sb.WriteString("      <li><a epub:type=\"cover\" href=\"" + coverFile + "\">Cover</a></li>\n")
	}
	if b.inlineTOC {
		sb.WriteString("      <li><a epub:type=\"toc\" href=\"" + navFile + "#toc\">" + escapeText(b.tocTitle) + "</a></li>\n")
	}
	seen := make(map[string]bool)
	for _, c := range b.contents {
		lm := c.Type.landmark()
		if seen[lm] {
			continue
		}
		seen[lm] = true
		fmt.Fprintf(&sb, "      <li><a epub:type=\"%s\" href=\"%s\">%s</a></li>\n", lm, escapeText(partHref(c)), escapeText(c.Title))
	}
	sb.WriteString("    </ol>\n")
	sb.WriteString("  </nav>\n")
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}

func (b *Book) coverDocument() []byte {
	var sb strings.Builder
	style := "body { margin: 0; padding: 0; text-align: center; }\n" +
		"    img { max-width: 100%; max-height: 100%; }"
	writeXHTMLHead(&sb, b.language, "Cover", style)
	sb.WriteString("<body epub:type=\"cover\">\n")
	sb.WriteString("  <img src=\"" + escapeText(path.Join(imageDir, b.cover.Filename)) + "\" alt=\"" + escapeText(b.title) + "\"/>\n")
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}

func writeXHTMLHead(sb *strings.Builder, lang, title, style string) {
	sb.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	sb.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(sb, "<html xmlns=\"http://www.w3.org/1999/xhtml\" xmlns:epub=\"http://www.idpf.org/2007/ops\" xml:lang=\"%s\" lang=\"%s\">\n",
		escapeText(lang), escapeText(lang))
	sb.WriteString("<head>\n")
	sb.WriteString("  <title>" + escapeText(title) + "</title>\n")
	if style != "" {
		sb.WriteString("  <style>\n    " + style + "\n  </style>\n")
	}
	sb.WriteString("</head>\n")
}

func escapeText(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails when the writer does.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
