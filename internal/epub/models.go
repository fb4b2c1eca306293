package epub

// OPF is a parsed package document.
type OPF struct {
	Version       string
	Metadata      Metadata
	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string                // ids in document order
	Spine         []SpineItem
	Guide         []GuideReference
	NavPath       string // EPUB 3 navigation document, archive path
	NCXPath       string // EPUB 2 NCX, archive path
}

// Metadata represents the metadata section of the OPF
type Metadata struct {
	Title       string
	Creators    []Creator
	Language    string
	Identifier  string
	Publisher   string
	Date        string
	Modified    string // dcterms:modified
	Generator   string // meta name="generator"
	Description string
	Subjects    []string
	Rights      string
	CoverID     string // EPUB 2.0 cover image manifest item ID (from meta name="cover")
}

// Creator represents a creator (author, editor, etc.) of the book
type Creator struct {
	Name string
	Role string // e.g., "aut" for author, "edt" for editor
	Lang string // xml:lang attribute
}

// ManifestItem represents an item in the manifest
type ManifestItem struct {
	ID         string
	Href       string // archive path
	MediaType  string
	Properties []string
}

// HasProperty reports whether the item lists prop in its properties.
func (m ManifestItem) HasProperty(prop string) bool {
	for _, p := range m.Properties {
		if p == prop {
			return true
		}
	}
	return false
}

// SpineItem represents an item reference in the spine
type SpineItem struct {
	IDRef  string
	Linear bool
}

// GuideReference is an EPUB 2 guide entry.
type GuideReference struct {
	Type  string
	Title string
	Href  string // archive path, fragment kept
}

// NavEntry is one table of contents entry.
type NavEntry struct {
	Label    string
	Path     string // archive path without fragment
	Fragment string
	Depth    int // 0 for top-level entries
}
