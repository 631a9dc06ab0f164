// Package document picks a representative image out of an arbitrary HTML
// page using social preview tags and, failing those, the first plausible
// <img>.
package document

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultBlocklist are substrings that mark an <img> as page chrome.
var DefaultBlocklist = []string{"icon", "logo", "pixel", "tracker"}

// Extractor holds the <img> blocklist. The zero value uses DefaultBlocklist.
type Extractor struct {
	Blocklist []string
}

// Extract runs a default Extractor over markup.
func Extract(markup, pageURL string) (string, bool) {
	return Extractor{}.Extract(markup, pageURL)
}

// ExtractReader runs a default Extractor over a streamed body.
func ExtractReader(r io.Reader, pageURL string) (string, bool) {
	return Extractor{}.ExtractReader(r, pageURL)
}

func (e Extractor) Extract(markup, pageURL string) (string, bool) {
	return e.ExtractReader(strings.NewReader(markup), pageURL)
}

// ExtractReader returns at most one absolute image URL, checked in order:
// og:image (unless it points at a login wall), twitter:image, then the first
// <img src> that is not blocklisted.
func (e Extractor) ExtractReader(r io.Reader, pageURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", false
	}

	base := baseURL(doc, pageURL)

	if og, ok := metaContent(doc, `meta[property="og:image"]`); ok &&
		!strings.Contains(strings.ToLower(og), "login") {
		if abs, ok := resolve(base, og); ok {
			return abs, true
		}
	}

	if tw, ok := metaContent(doc, `meta[name="twitter:image"]`); ok {
		if abs, ok := resolve(base, tw); ok {
			return abs, true
		}
	}

	blocklist := e.Blocklist
	if blocklist == nil {
		blocklist = DefaultBlocklist
	}

	var found string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || blocked(src, blocklist) {
			return true
		}
		if abs, ok := resolve(base, src); ok {
			found = abs
			return false
		}
		return true
	})
	return found, found != ""
}

func metaContent(doc *goquery.Document, selector string) (string, bool) {
	content := strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
	return content, content != ""
}

func blocked(src string, blocklist []string) bool {
	lower := strings.ToLower(src)
	for _, word := range blocklist {
		if word != "" && strings.Contains(lower, strings.ToLower(word)) {
			return true
		}
	}
	return false
}

// baseURL is the page URL, overridden by <base href> when present.
func baseURL(doc *goquery.Document, pageURL string) *url.URL {
	page, err := url.Parse(pageURL)
	if err != nil {
		page = nil
	}
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return page
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return page
	}
	if page == nil {
		return ref
	}
	return page.ResolveReference(ref)
}

func resolve(base *url.URL, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme == "" || (u.Host == "" && u.Scheme != "data") {
		return "", false
	}
	return u.String(), true
}
