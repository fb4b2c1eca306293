package epub

import (
	"testing"
)

func TestParseOPF_EPUB20(t *testing.T) {
	opfContent := `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Sample Book Title</dc:title>
    <dc:creator opf:role="aut">John Doe</dc:creator>
    <dc:creator opf:role="edt">Jane Editor</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="other">urn:uuid:ignored</dc:identifier>
    <dc:identifier id="bookid">urn:isbn:1234567890</dc:identifier>
    <dc:publisher>Test Publisher</dc:publisher>
    <dc:date>2024-01-01</dc:date>
    <dc:description>This is a sample book description.</dc:description>
    <dc:subject>Fiction</dc:subject>
    <dc:subject>Adventure</dc:subject>
    <dc:rights>Copyright 2024</dc:rights>
    <meta name="cover" content="cover-image"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="cover-image" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="chapter1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="chapter2" href="text/chapter2.xhtml" media-type="application/xhtml+xml"/>
    <item id="stylesheet" href="css/style.css" media-type="text/css"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="chapter1"/>
    <itemref idref="chapter2" linear="no"/>
  </spine>
</package>`

	opf, err := ParseOPF([]byte(opfContent), "OEBPS/")
	if err != nil {
		t.Fatalf("ParseOPF failed: %v", err)
	}

	md := opf.Metadata
	if md.Title != "Sample Book Title" {
		t.Errorf("Title = %q, want %q", md.Title, "Sample Book Title")
	}
	if len(md.Creators) != 2 {
		t.Fatalf("Creators count = %d, want 2", len(md.Creators))
	}
	if md.Creators[0].Name != "John Doe" || md.Creators[0].Role != "aut" {
		t.Errorf("Creators[0] = %+v, want John Doe/aut", md.Creators[0])
	}
	if md.Creators[1].Name != "Jane Editor" || md.Creators[1].Role != "edt" {
		t.Errorf("Creators[1] = %+v, want Jane Editor/edt", md.Creators[1])
	}
	if md.Identifier != "urn:isbn:1234567890" {
		t.Errorf("Identifier = %q, want %q", md.Identifier, "urn:isbn:1234567890")
	}
	if md.Publisher != "Test Publisher" {
		t.Errorf("Publisher = %q, want %q", md.Publisher, "Test Publisher")
	}
	if md.Date != "2024-01-01" {
		t.Errorf("Date = %q, want %q", md.Date, "2024-01-01")
	}
	if md.Description != "This is a sample book description." {
		t.Errorf("Description = %q", md.Description)
	}
	if len(md.Subjects) != 2 || md.Subjects[0] != "Fiction" || md.Subjects[1] != "Adventure" {
		t.Errorf("Subjects = %v, want [Fiction Adventure]", md.Subjects)
	}
	if md.Rights != "Copyright 2024" {
		t.Errorf("Rights = %q, want %q", md.Rights, "Copyright 2024")
	}
	if md.CoverID != "cover-image" {
		t.Errorf("CoverID = %q, want %q", md.CoverID, "cover-image")
	}

	if len(opf.Manifest) != 5 {
		t.Fatalf("Manifest count = %d, want 5", len(opf.Manifest))
	}
	if got := opf.Manifest["cover-image"].Href; got != "OEBPS/images/cover.jpg" {
		t.Errorf("cover-image.Href = %q, want %q", got, "OEBPS/images/cover.jpg")
	}
	if got := opf.Manifest["chapter1"].Href; got != "OEBPS/text/chapter1.xhtml" {
		t.Errorf("chapter1.Href = %q, want %q", got, "OEBPS/text/chapter1.xhtml")
	}

	expectedOrder := []string{"ncx", "cover-image", "chapter1", "chapter2", "stylesheet"}
	if len(opf.ManifestOrder) != len(expectedOrder) {
		t.Fatalf("ManifestOrder = %v, want %v", opf.ManifestOrder, expectedOrder)
	}
	for i, id := range expectedOrder {
		if opf.ManifestOrder[i] != id {
			t.Errorf("ManifestOrder[%d] = %q, want %q", i, opf.ManifestOrder[i], id)
		}
	}

	if len(opf.Spine) != 2 {
		t.Fatalf("Spine count = %d, want 2", len(opf.Spine))
	}
	if opf.Spine[0].IDRef != "chapter1" || !opf.Spine[0].Linear {
		t.Errorf("Spine[0] = %+v, want chapter1 linear", opf.Spine[0])
	}
	if opf.Spine[1].IDRef != "chapter2" || opf.Spine[1].Linear {
		t.Errorf("Spine[1] = %+v, want chapter2 non-linear", opf.Spine[1])
	}

	if opf.NCXPath != "OEBPS/toc.ncx" {
		t.Errorf("NCXPath = %q, want %q", opf.NCXPath, "OEBPS/toc.ncx")
	}
	if opf.NavPath != "" {
		t.Errorf("NavPath = %q, want empty", opf.NavPath)
	}
}

func TestParseOPF_EPUB30(t *testing.T) {
	opfContent := `<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>EPUB 3.0 Sample</dc:title>
    <dc:creator id="creator01">Author Name</dc:creator>
    <meta refines="#creator01" property="role" scheme="marc:relators">aut</meta>
    <dc:language>ja</dc:language>
    <dc:identifier id="bookid">urn:uuid:12345678-1234-1234-1234-123456789012</dc:identifier>
    <meta property="dcterms:modified">2024-01-15T12:00:00Z</meta>
    <meta name="generator" content="Ketabi"/>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="cover" href="images/cover.png" media-type="image/png" properties="cover-image"/>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
  </spine>
</package>`

	opf, err := ParseOPF([]byte(opfContent), "content/")
	if err != nil {
		t.Fatalf("ParseOPF failed: %v", err)
	}

	if opf.Version != "3.0" {
		t.Errorf("Version = %q, want %q", opf.Version, "3.0")
	}
	if opf.Metadata.Language != "ja" {
		t.Errorf("Language = %q, want %q", opf.Metadata.Language, "ja")
	}
	if len(opf.Metadata.Creators) != 1 || opf.Metadata.Creators[0].Role != "aut" {
		t.Errorf("Creators = %+v, want one aut", opf.Metadata.Creators)
	}
	if opf.Metadata.Modified != "2024-01-15T12:00:00Z" {
		t.Errorf("Modified = %q, want %q", opf.Metadata.Modified, "2024-01-15T12:00:00Z")
	}
	if opf.Metadata.Generator != "Ketabi" {
		t.Errorf("Generator = %q, want %q", opf.Metadata.Generator, "Ketabi")
	}

	if !opf.Manifest["nav"].HasProperty("nav") {
		t.Errorf("nav.Properties = %v, want [nav]", opf.Manifest["nav"].Properties)
	}
	cover := opf.Manifest["cover"]
	if !cover.HasProperty("cover-image") {
		t.Errorf("cover.Properties = %v, want [cover-image]", cover.Properties)
	}
	if cover.Href != "content/images/cover.png" {
		t.Errorf("cover.Href = %q, want %q", cover.Href, "content/images/cover.png")
	}
	if opf.NavPath != "content/nav.xhtml" {
		t.Errorf("NavPath = %q, want %q", opf.NavPath, "content/nav.xhtml")
	}
}

func TestParseOPF_IdentifierFallback(t *testing.T) {
	opfContent := `<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="missing">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Fallback</dc:title>
    <dc:identifier>first-value</dc:identifier>
    <dc:identifier>second-value</dc:identifier>
  </metadata>
  <manifest/>
  <spine/>
</package>`

	opf, err := ParseOPF([]byte(opfContent), "")
	if err != nil {
		t.Fatalf("ParseOPF failed: %v", err)
	}
	if opf.Metadata.Identifier != "first-value" {
		t.Errorf("Identifier = %q, want %q", opf.Metadata.Identifier, "first-value")
	}
}

func TestParseOPF_GuideReferences(t *testing.T) {
	opfContent := `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Guide Test</dc:title>
    <dc:identifier id="uid">guide-001</dc:identifier>
  </metadata>
  <manifest>
    <item id="cover-page" href="text/cover.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="cover-page"/>
  </spine>
  <guide>
    <reference type="cover" title="Cover" href="text/cover.xhtml#top"/>
    <reference type="toc" title="Table of Contents" href="toc.xhtml"/>
  </guide>
</package>`

	opf, err := ParseOPF([]byte(opfContent), "OEBPS")
	if err != nil {
		t.Fatalf("ParseOPF failed: %v", err)
	}

	if len(opf.Guide) != 2 {
		t.Fatalf("Guide count = %d, want 2", len(opf.Guide))
	}
	if opf.Guide[0].Type != "cover" || opf.Guide[0].Title != "Cover" {
		t.Errorf("Guide[0] = %+v", opf.Guide[0])
	}
	if opf.Guide[0].Href != "OEBPS/text/cover.xhtml#top" {
		t.Errorf("Guide[0].Href = %q, want %q", opf.Guide[0].Href, "OEBPS/text/cover.xhtml#top")
	}
	if opf.Guide[1].Href != "OEBPS/toc.xhtml" {
		t.Errorf("Guide[1].Href = %q, want %q", opf.Guide[1].Href, "OEBPS/toc.xhtml")
	}
}

func TestParseOPF_InvalidXML(t *testing.T) {
	if _, err := ParseOPF([]byte("<package><metadata>"), "OEBPS"); err == nil {
		t.Fatal("expected error for truncated XML")
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		base string
		rel  string
		want string
	}{
		{"OEBPS", "text/ch1.xhtml", "OEBPS/text/ch1.xhtml"},
		{"OEBPS/", "text/ch1.xhtml", "OEBPS/text/ch1.xhtml"},
		{"OEBPS/text", "../images/a.jpg", "OEBPS/images/a.jpg"},
		{"", "content.opf", "content.opf"},
		{".", "./nav.xhtml", "nav.xhtml"},
	}

	for _, tt := range tests {
		if got := joinPath(tt.base, tt.rel); got != tt.want {
			t.Errorf("joinPath(%q, %q) = %q, want %q", tt.base, tt.rel, got, tt.want)
		}
	}
}
