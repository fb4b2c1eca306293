package export

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// blankBody replaces an empty page body; some readers misrender empty bodies.
const blankBody = "&#160;"

var (
	slugSeparators = regexp.MustCompile(`[^\p{L}\p{N}]+`)

	titleEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
)

// Slug derives a file name component from s: every run of characters that
// are neither letters nor digits becomes one hyphen, edge hyphens are
// trimmed and the result is lowercased. An empty result gives "page".
func Slug(s string) string {
	s = strings.Trim(slugSeparators.ReplaceAllString(s, "-"), "-")
	if s == "" {
		return "page"
	}
	// A Caser keeps state and must not be shared between goroutines.
	return cases.Lower(language.Und).String(s)
}

// PageTitle returns the trimmed title, or "Chapter n" when it is blank.
func PageTitle(title string, n int) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return fmt.Sprintf("Chapter %d", n)
}

// PageFilename is the archive file name of the n-th page (1-based).
func PageFilename(title string, n int) string {
	return fmt.Sprintf("%02d-%s.xhtml", n, Slug(title))
}

// WrapXHTML builds a standalone XHTML document around a body fragment.
// The title is escaped; the fragment is inserted verbatim.
func WrapXHTML(title, fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		fragment = blankBody
	}

	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html xmlns=\"http://www.w3.org/1999/xhtml\" xml:lang=\"en\" lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("  <title>" + titleEscaper.Replace(title) + "</title>\n")
	sb.WriteString("</head>\n")
	sb.WriteString("<body>\n")
	sb.WriteString(fragment)
	sb.WriteString("\n</body>\n")
	sb.WriteString("</html>\n")
	return sb.String()
}
