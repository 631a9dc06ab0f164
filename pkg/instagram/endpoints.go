package instagram

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// Domain is the registrable domain all Instagram hosts share
	Domain = "instagram.com"

	// EmbedSuffix is appended to a post path to reach its embed page
	EmbedSuffix = "embed/captioned/"
)

// ObjectMarkers precede JSON objects carrying post media in embed pages.
var ObjectMarkers = []string{
	`"gql_data":`,
	`"graphql":`,
	`"shortcode_media":`,
	`"xdt_shortcode_media":`,
}

// StringMarkers precede JSON string literals that themselves hold JSON.
var StringMarkers = []string{
	`"contextJSON":`,
}

// Callback is the legacy script function whose second argument is the media
// payload.
const Callback = "window.__additionalDataLoaded"

// postKinds are the path segments that introduce a shortcode.
var postKinds = map[string]bool{
	"p":    true,
	"reel": true,
	"tv":   true,
}

// Post identifies a single Instagram post.
type Post struct {
	Kind      string
	Shortcode string
	Username  string
}

// IsInstagramHost reports whether host belongs to instagram.com.
func IsInstagramHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	return domain == Domain
}

// ParsePostURL recognizes /p/<code>, /reel/<code>, /tv/<code> and
// /<user>/p/<code> on any instagram.com host.
func ParsePostURL(u *url.URL) (Post, bool) {
	if u == nil || !IsInstagramHost(u.Hostname()) {
		return Post{}, false
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	switch {
	case len(segments) >= 2 && postKinds[strings.ToLower(segments[0])]:
		return newPost(segments[0], segments[1], "")
	case len(segments) >= 3 && strings.EqualFold(segments[1], "p") && IsValidUsername(segments[0]):
		return newPost(segments[1], segments[2], segments[0])
	default:
		return Post{}, false
	}
}

func newPost(kind, code, username string) (Post, bool) {
	if !IsValidShortcode(code) {
		return Post{}, false
	}
	return Post{Kind: strings.ToLower(kind), Shortcode: code, Username: username}, true
}

// EmbedURL returns the captioned embed page for the post.
func (p Post) EmbedURL() string {
	return GetEmbedURL(p.Shortcode)
}

// URL returns the canonical post URL.
func (p Post) URL() string {
	return GetPostURL(p.Shortcode)
}

// GetEmbedURL constructs the captioned embed page URL for a shortcode
func GetEmbedURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/%s", BaseURL, url.PathEscape(shortcode), EmbedSuffix)
}

// GetPostURL constructs the URL for a specific post
func GetPostURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", BaseURL, url.PathEscape(shortcode))
}

// IsValidShortcode checks the characters Instagram uses in post codes
func IsValidShortcode(code string) bool {
	if code == "" || len(code) > 64 {
		return false
	}
	for _, char := range code {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '-' || char == '_') {
			return false
		}
	}
	return true
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	// Instagram usernames can only contain letters, numbers, periods, and underscores
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}
