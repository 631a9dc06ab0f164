// Package normalize turns raw media references scraped from markup into
// canonical absolute URLs and filters out anything that is not fetchable.
package normalize

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

var entityReplacer = strings.NewReplacer(
	`\/`, "/",
	"&amp;", "&",
	"&#38;", "&",
	`\u0026`, "&",
)

// URL canonicalizes raw and reports whether the result is usable. Applying
// URL to its own output returns the same string.
func URL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	// repeat until stable: &amp;amp; collapses to &
	for i := 0; i < 8; i++ {
		next := entityReplacer.Replace(s)
		if next == s {
			break
		}
		s = next
	}
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	}
	if !Valid(s) {
		return "", false
	}
	return s, true
}

// Valid reports whether s is an http(s) URL with a host or a base64 data URI.
func Valid(s string) bool {
	if IsDataURI(s) {
		_, _, err := splitDataURI(s)
		return err == nil
	}
	if s != strings.TrimSpace(s) {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// IsDataURI reports whether s uses the data: scheme.
func IsDataURI(s string) bool {
	return len(s) >= 5 && strings.EqualFold(s[:5], "data:")
}

// DecodeDataURI returns the media type and decoded bytes of a base64 data URI.
func DecodeDataURI(s string) (string, []byte, error) {
	mediaType, encoded, err := splitDataURI(s)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("decoding data uri: %w", err)
	}
	return mediaType, data, nil
}

func splitDataURI(s string) (string, string, error) {
	if !IsDataURI(s) {
		return "", "", fmt.Errorf("not a data uri")
	}
	header, encoded, ok := strings.Cut(s[5:], ",")
	if !ok {
		return "", "", fmt.Errorf("data uri has no payload separator")
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", "", fmt.Errorf("data uri is not base64 encoded")
	}
	if _, _, err := mime.ParseMediaType(mediaType); err != nil {
		return "", "", fmt.Errorf("data uri media type: %w", err)
	}
	if encoded == "" {
		return "", "", fmt.Errorf("data uri payload is empty")
	}
	return strings.ToLower(mediaType), encoded, nil
}

// Deduper accumulates normalized URLs in first-seen order. Not safe for
// concurrent use; create one per resolution.
type Deduper struct {
	seen map[string]struct{}
	urls []string
}

func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Add normalizes raw and keeps it if it is valid and new.
func (d *Deduper) Add(raw string) bool {
	s, ok := URL(raw)
	if !ok {
		return false
	}
	if _, dup := d.seen[s]; dup {
		return false
	}
	d.seen[s] = struct{}{}
	d.urls = append(d.urls, s)
	return true
}

// URLs returns a copy of the accepted URLs.
func (d *Deduper) URLs() []string {
	out := make([]string, len(d.urls))
	copy(out, d.urls)
	return out
}

func (d *Deduper) Len() int { return len(d.urls) }
