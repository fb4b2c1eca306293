package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseNav reads the toc list of an EPUB 3 navigation document. navPath is
// the archive path of the document; hrefs are resolved against its directory.
// Nested lists are flattened in reading order with Depth recording the level.
func ParseNav(content []byte, navPath string) ([]NavEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse navigation document: %w", err)
	}

	baseDir := path.Dir(navPath)
	var entries []NavEntry

	doc.Find("nav").EachWithBreak(func(_ int, nav *goquery.Selection) bool {
		if !hasToken(nav.AttrOr("epub:type", ""), "toc") {
			return true
		}
		nav.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			p, frag := splitFragment(a.AttrOr("href", ""))
			if p != "" {
				p = joinPath(baseDir, p)
			}
			entries = append(entries, NavEntry{
				Label:    strings.Join(strings.Fields(a.Text()), " "),
				Path:     p,
				Fragment: frag,
				Depth:    a.ParentsUntilSelection(nav).Filter("ol").Length() - 1,
			})
		})
		return false
	})

	return entries, nil
}

type ncxTree struct {
	NavMap struct {
		Points []ncxPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxPoint struct {
	Label   string `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxPoint `xml:"navPoint"`
}

// ParseNCX reads the navMap of an EPUB 2 NCX file.
func ParseNCX(content []byte, ncxPath string) ([]NavEntry, error) {
	var f ncxTree
	if err := xml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}

	baseDir := path.Dir(ncxPath)
	var entries []NavEntry
	var walk func(points []ncxPoint, depth int)
	walk = func(points []ncxPoint, depth int) {
		for _, np := range points {
			p, frag := splitFragment(np.Content.Src)
			if p != "" {
				p = joinPath(baseDir, p)
			}
			entries = append(entries, NavEntry{
				Label:    strings.TrimSpace(np.Label),
				Path:     p,
				Fragment: frag,
				Depth:    depth,
			})
			walk(np.Children, depth+1)
		}
	}
	walk(f.NavMap.Points, 0)

	return entries, nil
}

// splitFragment splits a source path into the path and fragment identifier.
func splitFragment(src string) (p, fragment string) {
	p, fragment, _ = strings.Cut(src, "#")
	return p, fragment
}

func hasToken(list, token string) bool {
	for _, t := range strings.Fields(list) {
		if t == token {
			return true
		}
	}
	return false
}
