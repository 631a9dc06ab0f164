package resolver

import (
	"net/url"
	"strings"

	errs "postmedia/pkg/errors"
)

// Request is a parsed post URL. It is not modified after NewRequest.
type Request struct {
	Raw   string
	URL   *url.URL
	Path  string // lower-cased
	Query url.Values
}

// NewRequest parses rawURL, which must be an absolute http(s) URL.
func NewRequest(rawURL string) (*Request, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, errs.New(errs.ErrorTypeUnsupported, rawURL, "empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnsupported, rawURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, errs.New(errs.ErrorTypeUnsupported, rawURL, "url must be absolute http or https")
	}
	return &Request{
		Raw:   raw,
		URL:   u,
		Path:  strings.ToLower(u.Path),
		Query: u.Query(),
	}, nil
}

// WithoutQuery returns the request URL with query and fragment removed.
func (r *Request) WithoutQuery() string {
	u := *r.URL
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Result is the outcome of a resolution. URLs are normalized, unique and in
// discovery order.
type Result struct {
	URLs     []string
	Strategy string
}

// Empty reports whether nothing was found.
func (r Result) Empty() bool {
	return len(r.URLs) == 0
}

func found(strategy string, urls []string) Result {
	if len(urls) == 0 {
		return Result{}
	}
	return Result{URLs: urls, Strategy: strategy}
}

// hasExtension reports whether the lower-cased path ends in one of exts.
func hasExtension(path string, exts []string) bool {
	path = strings.ToLower(path)
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(path, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
