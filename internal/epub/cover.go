package epub

import (
	"path"
	"strings"
)

// CoverInfo describes the cover image found in a package.
type CoverInfo struct {
	ManifestID string
	Href       string
	MediaType  string
	Method     string // "properties", "meta" or "guide"
}

// DetectCover finds the cover image, trying the EPUB 3 cover-image property,
// then the EPUB 2 meta name="cover", then an image item named by a guide
// reference of type cover. It returns nil when none matches.
func (opf *OPF) DetectCover() *CoverInfo {
	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		if item.HasProperty("cover-image") {
			return newCoverInfo(item, "properties")
		}
	}

	if opf.Metadata.CoverID != "" {
		if item, ok := opf.Manifest[opf.Metadata.CoverID]; ok && isImageMediaType(item.MediaType) {
			return newCoverInfo(item, "meta")
		}
	}

	for _, ref := range opf.Guide {
		if !strings.EqualFold(ref.Type, "cover") {
			continue
		}
		target, _, _ := strings.Cut(ref.Href, "#")
		for _, id := range opf.ManifestOrder {
			item := opf.Manifest[id]
			if isImageMediaType(item.MediaType) && path.Clean(item.Href) == path.Clean(target) {
				return newCoverInfo(item, "guide")
			}
		}
	}

	return nil
}

func newCoverInfo(item ManifestItem, method string) *CoverInfo {
	return &CoverInfo{
		ManifestID: item.ID,
		Href:       item.Href,
		MediaType:  item.MediaType,
		Method:     method,
	}
}

// isImageMediaType checks if a media type is a raster image (SVG excluded).
func isImageMediaType(mediaType string) bool {
	if mediaType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
