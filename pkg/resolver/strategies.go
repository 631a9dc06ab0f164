package resolver

import (
	"context"
	"net/url"
	"time"

	"postmedia/pkg/document"
	"postmedia/pkg/fetch"
	"postmedia/pkg/instagram"
	"postmedia/pkg/jsonscan"
	"postmedia/pkg/logger"
	"postmedia/pkg/loosejson"
	"postmedia/pkg/mediatree"
	"postmedia/pkg/metadata"
	"postmedia/pkg/normalize"
	"postmedia/pkg/ratelimit"
)

// Strategy names, in cascade order.
const (
	StrategyNestedURL       = "nested-url"
	StrategyDirectExtension = "direct-extension"
	StrategyEmbed           = "embed"
	StrategyMetadata        = "metadata"
	StrategyDocument        = "document"
)

// Strategy is one way of turning a request into media URLs. Implementations
// report failure as an empty Result and never return partial output.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, req *Request) Result
}

// Fetcher retrieves a page body.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, headers map[string]string) (*fetch.Response, error)
}

// NestedURL unwraps share links that carry the image in a url parameter.
type NestedURL struct {
	Extensions []string
}

func (NestedURL) Name() string { return StrategyNestedURL }

func (s NestedURL) Resolve(_ context.Context, req *Request) Result {
	nested := req.Query.Get("url")
	if nested == "" {
		return Result{}
	}
	u, err := url.Parse(nested)
	if err != nil || !hasExtension(u.Path, s.Extensions) {
		return Result{}
	}
	normalized, ok := normalize.URL(nested)
	if !ok {
		return Result{}
	}
	return found(s.Name(), []string{normalized})
}

// DirectExtension accepts URLs that already point at an image file.
type DirectExtension struct {
	Extensions []string
}

func (DirectExtension) Name() string { return StrategyDirectExtension }

func (s DirectExtension) Resolve(_ context.Context, req *Request) Result {
	if !hasExtension(req.Path, s.Extensions) {
		return Result{}
	}
	normalized, ok := normalize.URL(req.WithoutQuery())
	if !ok {
		return Result{}
	}
	return found(s.Name(), []string{normalized})
}

// Embed reads carousel media out of an Instagram post's embed page.
type Embed struct {
	Fetcher Fetcher
	Timeout time.Duration
	Limiter ratelimit.Limiter
	Walker  mediatree.Walker
	Log     logger.Logger
}

func (*Embed) Name() string { return StrategyEmbed }

func (s *Embed) Resolve(ctx context.Context, req *Request) Result {
	post, ok := instagram.ParsePostURL(req.URL)
	if !ok {
		return Result{}
	}
	log := s.Log.WithFields(map[string]interface{}{
		"strategy":  s.Name(),
		"shortcode": post.Shortcode,
	})

	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	// The pacing wait counts against the embed timeout.
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			log.WithError(err).Debug("embed fetch not attempted")
			return Result{}
		}
	}

	resp, err := s.Fetcher.Get(ctx, post.EmbedURL(), map[string]string{
		"Referer": instagram.BaseURL + "/",
	})
	if err != nil {
		log.WithError(err).Warn("embed page fetch failed")
		return Result{}
	}

	return found(s.Name(), s.Extract(string(resp.Body), log))
}

// Extract pulls every media payload out of an embed page body and returns
// the still image URLs across all of them.
func (s *Embed) Extract(body string, log logger.Logger) []string {
	var spans []jsonscan.Span
	for _, marker := range instagram.ObjectMarkers {
		spans = append(spans, jsonscan.ObjectsAfter(body, marker)...)
	}
	for _, marker := range instagram.StringMarkers {
		spans = append(spans, jsonscan.StringsAfter(body, marker)...)
	}
	spans = append(spans, jsonscan.CallbackObjects(body, instagram.Callback)...)

	dedup := normalize.NewDeduper()
	for _, span := range spans {
		root, ok := loosejson.Decode(span.Text)
		if !ok {
			log.DebugWithFields("undecodable payload", map[string]interface{}{
				"marker": span.Marker,
				"offset": span.Offset,
			})
			continue
		}
		for _, c := range mediatree.Candidates(s.Walker.FindMediaNodes(root)) {
			dedup.Add(c.URL)
		}
	}
	return dedup.URLs()
}

// Metadata asks the external extractor for the best thumbnail.
type Metadata struct {
	Extractor metadata.Extractor
	Log       logger.Logger
}

func (*Metadata) Name() string { return StrategyMetadata }

func (s *Metadata) Resolve(ctx context.Context, req *Request) Result {
	info, err := s.Extractor.Extract(ctx, req.Raw)
	if err != nil {
		s.Log.WithError(err).DebugWithFields("metadata extraction failed", map[string]interface{}{
			"strategy": s.Name(),
		})
		return Result{}
	}
	best, ok := info.Best()
	if !ok {
		return Result{}
	}
	normalized, ok := normalize.URL(best)
	if !ok {
		return Result{}
	}
	return found(s.Name(), []string{normalized})
}

// Document falls back to the page's own preview tags.
type Document struct {
	Fetcher   Fetcher
	Timeout   time.Duration
	Extractor document.Extractor
	Log       logger.Logger
}

func (*Document) Name() string { return StrategyDocument }

func (s *Document) Resolve(ctx context.Context, req *Request) Result {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	resp, err := s.Fetcher.Get(ctx, req.Raw, nil)
	if err != nil {
		s.Log.WithError(err).WarnWithFields("document fetch failed", map[string]interface{}{
			"strategy": s.Name(),
		})
		return Result{}
	}

	pageURL := resp.FinalURL
	if pageURL == "" {
		pageURL = req.Raw
	}
	image, ok := s.Extractor.Extract(string(resp.Body), pageURL)
	if !ok {
		return Result{}
	}
	normalized, ok := normalize.URL(image)
	if !ok {
		return Result{}
	}
	return found(s.Name(), []string{normalized})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
